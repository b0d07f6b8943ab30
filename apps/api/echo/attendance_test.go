package echoapi

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
)

func Test_attendanceApi_save(t *testing.T) {
	app := newTestApp(t)
	token := app.login("head@test.cd")

	classID := app.newClass(token, "5A")
	amani, baraka, chausiku := app.newStudent(token, "Amani", classID), app.newStudent(token, "Baraka", classID), app.newStudent(token, "Chausiku", classID)
	day := core.MustDate("2024-03-04")

	sheetURL := "/v1/attendance/sheet?" + url.Values{
		"date":      {day.String()},
		"group_ref": {classID},
	}.Encode()

	sheet := attendance.Sheet{
		Kind:     attendance.KindStudent,
		Date:     day,
		GroupRef: classID,
		Marks: map[string]attendance.Status{
			amani:    attendance.StatusPresent,
			baraka:   attendance.StatusAbsent,
			chausiku: attendance.StatusLate,
		},
	}

	var records []attendance.Record
	decode(t, app.do(http.MethodPut, "/v1/attendance", token, sheet), http.StatusOK, &records)
	assert.Len(t, records, 3)

	// dropping a student from the sheet removes their mark
	delete(sheet.Marks, chausiku)
	sheet.Marks[baraka] = attendance.StatusPresent
	decode(t, app.do(http.MethodPut, "/v1/attendance", token, sheet), http.StatusOK, &records)
	require.Len(t, records, 2)

	decode(t, app.do(http.MethodGet, sheetURL, token, nil), http.StatusOK, &records)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, attendance.StatusPresent, rec.Status, rec.SubjectRef)
	}

	decode(t, app.do(http.MethodGet, "/v1/attendance?status=present&from=2024-03-01&to=2024-03-31", token, nil), http.StatusOK, &records)
	assert.Len(t, records, 2)

	// other owners see nothing
	decode(t, app.do(http.MethodGet, sheetURL, app.login("other@test.cd"), nil), http.StatusOK, &records)
	assert.Empty(t, records)

	decode(t, app.do(http.MethodDelete, "/v1/attendance/"+sheetRecords(t, app, token, sheetURL)[0].ID, token, nil), http.StatusOK, nil)
	assert.Len(t, sheetRecords(t, app, token, sheetURL), 1)

	// deleting a student takes their marks along
	records = sheetRecords(t, app, token, sheetURL)
	require.Len(t, records, 1)
	decode(t, app.do(http.MethodDelete, "/v1/students/"+records[0].SubjectRef, token, nil), http.StatusOK, nil)
	decode(t, app.do(http.MethodGet, "/v1/attendance?group_ref="+classID, token, nil), http.StatusOK, &records)
	assert.Empty(t, records)
}

func sheetRecords(t *testing.T, app *testApp, token, sheetURL string) []attendance.Record {
	var records []attendance.Record
	decode(t, app.do(http.MethodGet, sheetURL, token, nil), http.StatusOK, &records)
	return records
}

func Test_attendanceApi_errors(t *testing.T) {
	app := newTestApp(t)
	token := app.login("head@test.cd")
	classID := app.newClass(token, "5A")
	amani := app.newStudent(token, "Amani", classID)
	day := core.MustDate("2024-03-04")
	sheet := attendance.Sheet{
		Kind:     attendance.KindStudent,
		Date:     day,
		GroupRef: classID,
		Marks:    map[string]attendance.Status{amani: attendance.StatusPresent},
	}

	t.Run("bad status", func(t *testing.T) {
		bad := sheet
		bad.Marks = map[string]attendance.Status{amani: "sick"}
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, bad), http.StatusBadRequest, nil)
	})

	t.Run("no date", func(t *testing.T) {
		bad := sheet
		bad.Date = core.Date{}
		fields := make(map[string]string)
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, bad), http.StatusBadRequest, &fields)
		assert.Contains(t, fields, "date")

		decode(t, app.do(http.MethodGet, "/v1/attendance/sheet?group_ref="+classID, token, nil), http.StatusBadRequest, nil)
		decode(t, app.do(http.MethodGet, "/v1/attendance/sheet?date=04/03/2024", token, nil), http.StatusBadRequest, nil)
	})

	t.Run("unknown refs", func(t *testing.T) {
		rival := app.login("rival@test.cd")
		rivalClass := app.newClass(rival, "6A")
		zuri := app.newStudent(rival, "Zuri", rivalClass)
		madeUp := uuid.NewString()

		fields := make(map[string]string)
		bad := sheet
		bad.Marks = map[string]attendance.Status{amani: attendance.StatusPresent, zuri: attendance.StatusAbsent, madeUp: attendance.StatusLate}
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, bad), http.StatusBadRequest, &fields)
		assert.Equal(t, map[string]string{zuri: "student is not in this class", madeUp: "student is not in this class"}, fields)

		fields = make(map[string]string)
		bad = sheet
		bad.GroupRef = rivalClass
		bad.Marks = map[string]attendance.Status{zuri: attendance.StatusPresent}
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, bad), http.StatusBadRequest, &fields)
		assert.Equal(t, map[string]string{"group_ref": "class not found"}, fields)

		bad.GroupRef = uuid.NewString()
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, bad), http.StatusBadRequest, nil)

		var records []attendance.Record
		decode(t, app.do(http.MethodGet, "/v1/attendance", rival, nil), http.StatusOK, &records)
		assert.Empty(t, records)
	})

	t.Run("busy", func(t *testing.T) {
		key := "attendance:" + access.NewTag("head@test.cd").String() + ":student:" + day.String() + ":" + classID
		release, err := app.srv.guard.Acquire(key)
		require.NoError(t, err)

		decode(t, app.do(http.MethodPut, "/v1/attendance", token, sheet), http.StatusConflict, nil)

		// other sheets are not blocked
		other := sheet
		other.Date = core.MustDate("2024-03-05")
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, other), http.StatusOK, nil)

		release()
		decode(t, app.do(http.MethodPut, "/v1/attendance", token, sheet), http.StatusOK, nil)
	})
}
