package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	fakesessionrepo "github.com/jrsteele09/go-login-server/auth/sessions/repofakes"
	"github.com/jrsteele09/go-login-server/auth/sessions/reporedis"
	"github.com/jrsteele09/go-login-server/internal/config"
	fakeuserrepo "github.com/jrsteele09/go-login-server/users/repofake"
	"github.com/jrsteele09/go-login-server/users/reposqlite"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()

	t.Setenv("LOGIN_ENV", "TEST")
	for k, v := range env {
		t.Setenv(k, v)
	}
	c, err := config.Load("")
	require.NoError(t, err)
	return c
}

func TestOpenStores_Memory(t *testing.T) {
	st, err := openStores(context.Background(), loadTestConfig(t, nil))
	require.NoError(t, err)
	defer st.Close()

	require.IsType(t, &fakeuserrepo.FakeUserRepo{}, st.repos.Users)
	require.IsType(t, &fakesessionrepo.FakeSessionRepo{}, st.repos.Sessions)
}

func TestOpenStores_RedisAndSQLite(t *testing.T) {
	mr := miniredis.RunT(t)
	st, err := openStores(context.Background(), loadTestConfig(t, map[string]string{
		"LOGIN_STORE_SESSIONS":    "redis",
		"LOGIN_STORE_REDIS_ADDR":  mr.Addr(),
		"LOGIN_STORE_USERS":       "sqlite",
		"LOGIN_STORE_SQLITE_PATH": ":memory:",
	}))
	require.NoError(t, err)
	defer st.Close()

	require.IsType(t, &reposqlite.SQLiteUserRepo{}, st.repos.Users)
	require.IsType(t, &reporedis.RedisSessionRepo{}, st.repos.Sessions)
}

func TestOpenStores_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := openStores(context.Background(), loadTestConfig(t, map[string]string{
		"LOGIN_STORE_SESSIONS":   "redis",
		"LOGIN_STORE_REDIS_ADDR": addr,
	}))
	require.Error(t, err)
}

func TestUserAddAndSweepCommands(t *testing.T) {
	loadTestConfig(t, map[string]string{
		"LOGIN_STORE_USERS":       "sqlite",
		"LOGIN_STORE_SQLITE_PATH": t.TempDir() + "/users.db",
	})

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"useradd", "carol", "--name", "Carol", "--password", "Str0ngPass"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "created user carol")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"useradd", "dave", "--password", "weak"})
	require.Error(t, root.Execute())

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"sweep"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "removed 0 expired sessions")
}
