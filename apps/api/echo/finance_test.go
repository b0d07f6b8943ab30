package echoapi

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/teacher"
)

func Test_financeApi_fees(t *testing.T) {
	app := newTestApp(t)
	token := app.login("bursar@test.cd")

	amani := app.newStudent(token, "Amani", "")

	fields := make(map[string]string)
	decode(t, app.do(http.MethodPost, "/v1/fees", token, finance.NewFee{
		StudentID: uuid.NewString(),
		FeeType:   "tuition",
		Amount:    decimal.NewFromInt(300),
		DueDate:   core.MustDate("2024-04-01"),
	}), http.StatusBadRequest, &fields)
	assert.Equal(t, map[string]string{"student_id": "student not found"}, fields)

	var f finance.Fee
	decode(t, app.do(http.MethodPost, "/v1/fees", token, finance.NewFee{
		StudentID: amani,
		FeeType:   "tuition",
		Amount:    decimal.NewFromInt(300),
		DueDate:   core.MustDate("2024-04-01"),
	}), http.StatusCreated, &f)
	assert.Equal(t, finance.StatusUnpaid, f.Status)
	path := "/v1/fees/" + f.ID

	t.Run("payment without mode", func(t *testing.T) {
		decode(t, app.do(http.MethodPost, path+"/payments", token, finance.Payment{Amount: decimal.NewFromInt(10)}), http.StatusBadRequest, nil)
	})

	t.Run("overpayment", func(t *testing.T) {
		decode(t, app.do(http.MethodPost, path+"/payments", token, finance.Payment{
			Amount: decimal.NewFromInt(301), PaymentMode: finance.ModeCash,
		}), http.StatusBadRequest, nil)
	})

	t.Run("partial payment", func(t *testing.T) {
		decode(t, app.do(http.MethodPost, path+"/payments", token, finance.Payment{
			Amount: decimal.NewFromInt(100), PaymentMode: finance.ModeCash,
		}), http.StatusOK, &f)
		assert.Equal(t, finance.StatusPartial, f.Status)
		assert.Equal(t, "100", f.AmountPaid.String())
	})

	t.Run("busy", func(t *testing.T) {
		release, err := app.srv.guard.Acquire("fee:" + access.NewTag("bursar@test.cd").String() + ":" + f.ID)
		require.NoError(t, err)
		defer release()
		decode(t, app.do(http.MethodPost, path+"/pay", token, finance.MarkPaid{PaymentMode: finance.ModeCard}), http.StatusConflict, nil)
	})

	t.Run("pay", func(t *testing.T) {
		decode(t, app.do(http.MethodPost, path+"/pay", token, finance.MarkPaid{PaymentMode: finance.ModeCard}), http.StatusOK, &f)
		assert.Equal(t, finance.StatusPaid, f.Status)
		assert.Equal(t, "300", f.AmountPaid.String())
		assert.Equal(t, finance.ModeCard, f.PaymentMode)
	})

	t.Run("query", func(t *testing.T) {
		var fees []finance.Fee
		decode(t, app.do(http.MethodGet, "/v1/fees?status=paid", token, nil), http.StatusOK, &fees)
		assert.Len(t, fees, 1)
		decode(t, app.do(http.MethodGet, "/v1/fees?status=unpaid", token, nil), http.StatusOK, &fees)
		assert.Empty(t, fees)
		decode(t, app.do(http.MethodGet, "/v1/fees?from=lol", token, nil), http.StatusBadRequest, nil)
	})

	t.Run("other owner", func(t *testing.T) {
		other := app.login("other@test.cd")
		decode(t, app.do(http.MethodGet, path, other, nil), http.StatusNotFound, nil)
		decode(t, app.do(http.MethodPost, path+"/pay", other, finance.MarkPaid{PaymentMode: finance.ModeCard}), http.StatusNotFound, nil)
	})

	t.Run("delete", func(t *testing.T) {
		decode(t, app.do(http.MethodDelete, path, token, nil), http.StatusOK, nil)
		decode(t, app.do(http.MethodGet, path, token, nil), http.StatusNotFound, nil)
	})
}

func Test_financeApi_salaries(t *testing.T) {
	app := newTestApp(t)
	token := app.login("bursar@test.cd")

	var juma, neema teacher.Teacher
	decode(t, app.do(http.MethodPost, "/v1/teachers", token, teacher.NewTeacher{Name: "Juma", BaseSalary: decimal.NewFromInt(900)}), http.StatusCreated, &juma)
	decode(t, app.do(http.MethodPost, "/v1/teachers", token, teacher.NewTeacher{Name: "Neema", BaseSalary: decimal.NewFromInt(1200)}), http.StatusCreated, &neema)

	var s finance.Salary
	decode(t, app.do(http.MethodPost, "/v1/salaries", token, finance.NewSalary{
		TeacherID: juma.ID, Amount: decimal.NewFromInt(950), Period: "2024-03",
	}), http.StatusCreated, &s)

	fields := make(map[string]string)
	decode(t, app.do(http.MethodPost, "/v1/salaries", app.login("rival@test.cd"), finance.NewSalary{
		TeacherID: juma.ID, Amount: decimal.NewFromInt(950), Period: "2024-03",
	}), http.StatusBadRequest, &fields)
	assert.Equal(t, map[string]string{"teacher_id": "teacher not found"}, fields)

	fields = make(map[string]string)
	decode(t, app.do(http.MethodPost, "/v1/salaries", token, finance.NewSalary{
		TeacherID: juma.ID, Amount: decimal.NewFromInt(950), Period: "2024-03",
	}), http.StatusBadRequest, &fields)
	assert.Contains(t, fields, "period")

	var created []finance.Salary
	decode(t, app.do(http.MethodPost, "/v1/salaries/payroll", token, finance.Payroll{Period: "2024-03"}), http.StatusCreated, &created)
	require.Len(t, created, 1)
	assert.Equal(t, neema.ID, created[0].TeacherID)

	decode(t, app.do(http.MethodPost, "/v1/salaries/payroll", token, finance.Payroll{Period: "March"}), http.StatusBadRequest, nil)

	decode(t, app.do(http.MethodPost, "/v1/salaries/"+s.ID+"/pay", token, finance.MarkPaid{PaymentMode: finance.ModeBankTransfer}), http.StatusOK, &s)
	assert.Equal(t, finance.StatusPaid, s.Status)

	var salaries []finance.Salary
	decode(t, app.do(http.MethodGet, "/v1/salaries?period=2024-03&status=unpaid", token, nil), http.StatusOK, &salaries)
	require.Len(t, salaries, 1)
	assert.Equal(t, neema.ID, salaries[0].TeacherID)
}
