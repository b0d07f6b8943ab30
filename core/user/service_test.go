package user_test

import (
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func TestMain(m *testing.M) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(testutil.NewLogger(), conf.Server.FrontendBaseURL, true)
	os.Exit(m.Run())
}

const strongPwd = "Sh0le!Kubwa"

func TestNewUser_Validate(t *testing.T) {
	env := testutil.NewEnv()
	testutil.CreateUser(t, env.UserRepo, "Head", "head@test.cd", strongPwd, true)

	tests := []struct {
		name    string
		nu      user.NewUser
		wantTag string
		wantErr error
	}{
		{name: "no name", nu: user.NewUser{Email: "a@test.cd", Password: strongPwd, PasswordConfirm: strongPwd}, wantTag: "required"},
		{name: "bad email", nu: user.NewUser{Name: "A", Email: "lol", Password: strongPwd, PasswordConfirm: strongPwd}, wantTag: "email"},
		{name: "confirm mismatch", nu: user.NewUser{Name: "A", Email: "a@test.cd", Password: strongPwd, PasswordConfirm: "lol"}, wantTag: "eqfield"},
		{name: "too short", nu: user.NewUser{Name: "A", Email: "a@test.cd", Password: "Ab1!", PasswordConfirm: "Ab1!"}, wantTag: "pwdminlen"},
		{name: "whitespace", nu: user.NewUser{Name: "A", Email: "a@test.cd", Password: "Abcd 123!", PasswordConfirm: "Abcd 123!"}, wantTag: "pwdnospace"},
		{name: "all numeric", nu: user.NewUser{Name: "A", Email: "a@test.cd", Password: "1234567890", PasswordConfirm: "1234567890"}, wantTag: "pwdnotallnum"},
		{name: "too simple", nu: user.NewUser{Name: "A", Email: "a@test.cd", Password: "abcdefgh1", PasswordConfirm: "abcdefgh1"}, wantTag: "pwdcplx"},
		{name: "like the email", nu: user.NewUser{Name: "A", Email: "amani.k@test.cd", Password: "Amani.k@test1", PasswordConfirm: "Amani.k@test1"}, wantTag: "pwdtoosim"},
		{name: "taken email", nu: user.NewUser{Name: "A", Email: " HEAD@test.cd", Password: strongPwd, PasswordConfirm: strongPwd}, wantErr: user.ErrEmailExists},
		{name: "valid", nu: user.NewUser{Name: " Amani ", Email: "Amani@Test.cd", Password: strongPwd, PasswordConfirm: strongPwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(env.Validate, env.UserSvc)
			switch {
			case tt.wantTag != "":
				var verrs validator.ValidationErrors
				require.True(t, errors.As(err, &verrs), "got %v", err)
				assert.Equal(t, tt.wantTag, verrs[0].Tag())
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, "Amani", nu.Name)
				assert.Equal(t, "amani@test.cd", nu.Email)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv()

	usr, err := env.UserSvc.Create(user.NewUser{Name: "Head", Email: "head@test.cd", Password: strongPwd})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(strongPwd))
	assert.Equal(t, "head@test.cd", usr.OwnerTag().String())

	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "head@test.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Welcome Head")

	got, err := env.UserSvc.GetByEmail(" HEAD@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv()
	usr := testutil.CreateUser(t, env.UserRepo, "Head", "head@test.cd", strongPwd, true)

	uu := user.UpdateUser{Name: "  "}
	require.NoError(t, uu.Validate(usr, env.Validate))
	updated, err := env.UserSvc.Update(usr, uu)
	require.NoError(t, err)
	assert.Equal(t, "Head", updated.Name, "blank name keeps the old one")
	assert.NoError(t, updated.CheckPassword(strongPwd))

	uu = user.UpdateUser{Name: "Mwalimu", Password: "N3w!Passw0rd", PasswordConfirm: "N3w!Passw0rd"}
	require.NoError(t, uu.Validate(usr, env.Validate))
	updated, err = env.UserSvc.Update(usr, uu)
	require.NoError(t, err)
	assert.Equal(t, "Mwalimu", updated.Name)
	assert.NoError(t, updated.CheckPassword("N3w!Passw0rd"))

	uu = user.UpdateUser{Password: "N3w!Passw0rd"}
	assert.Error(t, uu.Validate(usr, env.Validate), "confirmation is required")
}

func TestService_PasswordReset(t *testing.T) {
	env := testutil.NewEnv()
	usr := testutil.CreateUser(t, env.UserRepo, "Head", "head@test.cd", strongPwd, true)
	testutil.CreateUser(t, env.UserRepo, "Gone", "gone@test.cd", strongPwd, false)

	assert.Equal(t, user.ErrNotFound, errors.Cause(env.UserSvc.RequestPasswordReset("lol@test.cd")))
	assert.Equal(t, user.ErrNotFound, env.UserSvc.RequestPasswordReset("gone@test.cd"))
	assert.Empty(t, env.Mail.Sent())

	require.NoError(t, env.UserSvc.RequestPasswordReset("Head@test.cd"))
	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	uid, token := testutil.ResetLink(sent[0])
	require.NotEmpty(t, uid)
	require.NotEmpty(t, token)
	assert.Equal(t, user.EncodeUID(usr), uid)
	assert.Contains(t, sent[0].TextContent, "/password-reset/"+uid+"/"+token)

	newPwd := "An0ther!Secret"
	tests := []struct {
		name    string
		data    user.ResetUserPassword
		wantErr bool
	}{
		{name: "bad uid", data: user.ResetUserPassword{UID: "lol", Token: token, Password: newPwd, PasswordConfirm: newPwd}, wantErr: true},
		{name: "bad token", data: user.ResetUserPassword{UID: uid, Token: "1-abc", Password: newPwd, PasswordConfirm: newPwd}, wantErr: true},
		{name: "ok", data: user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}},
		{name: "token used", data: user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.data.Validate(env.Validate))
			err := env.UserSvc.ResetPassword(tt.data)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			refreshed, err := env.UserSvc.GetByID(usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(newPwd))
		})
	}
}
