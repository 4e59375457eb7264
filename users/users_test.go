package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-login-server/users"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("admin")
	require.NoError(t, err)
	require.NotEqual(t, "admin", hash)
	require.True(t, users.CheckPasswordHash("admin", hash))
	require.False(t, users.CheckPasswordHash("Admin", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Secret123"))
	require.ErrorContains(t, users.ValidatePasswordStrength("short"), "at least 8")
	require.ErrorContains(t, users.ValidatePasswordStrength("secret123"), "uppercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("SECRET123"), "lowercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("SecretABC"), "number")
}

func TestUser_Principal(t *testing.T) {
	u := &users.User{
		ID:           "id-1",
		LoginName:    "admin",
		DisplayName:  "Administrator",
		PasswordHash: "secret-hash",
		Roles:        []users.RoleType{users.RoleAdmin},
	}

	p := u.Principal()
	require.Equal(t, "admin", p.LoginName)
	require.True(t, p.HasRole(users.RoleAdmin))
	require.False(t, p.HasRole(users.RoleUser))

	u.Roles[0] = users.RoleUser
	require.True(t, p.HasRole(users.RoleAdmin), "principal roles must not alias the user")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(data), `"loginname":"admin"`)
	require.NotContains(t, string(data), "secret-hash")
}

func TestPageRequest_Normalize(t *testing.T) {
	req := users.PageRequest{Page: -1, Size: 0}.Normalize()
	require.Equal(t, 0, req.Page)
	require.Equal(t, users.DefaultPageSize, req.Size)

	req = users.PageRequest{Page: 3, Size: 1000}.Normalize()
	require.Equal(t, users.MaxPageSize, req.Size)
	require.Equal(t, 3*users.MaxPageSize, req.Offset())
}

func TestNewPageAndSlice(t *testing.T) {
	page := users.NewPage([]int{1, 2}, users.PageRequest{Page: 0, Size: 2}, 5)
	require.Equal(t, 3, page.TotalPages)

	slice := users.NewSlice([]int{1, 2, 3}, users.PageRequest{Page: 0, Size: 2})
	require.True(t, slice.HasNext)
	require.Equal(t, []int{1, 2}, slice.Content)

	empty := users.NewSlice[int](nil, users.PageRequest{Size: 2})
	require.NotNil(t, empty.Content)
	require.False(t, empty.HasNext)
}
