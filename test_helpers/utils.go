package test_helpers

import (
	"context"
	"os"
	"testing"
	"time"
)

const tarantoolAddrEnv = "TARANTOOL_ADDR"

// TarantoolAddr returns the address of a running Tarantool instance or skips
// the test if it is not configured.
func TarantoolAddr(t testing.TB) string {
	t.Helper()

	addr := os.Getenv(tarantoolAddrEnv)
	if addr == "" {
		t.Skipf("%s is not set", tarantoolAddrEnv)
	}
	return addr
}

// TarantoolCredentials returns the user and password for the instance from
// TARANTOOL_USER and TARANTOOL_PASSWORD, "guest" by default.
func TarantoolCredentials() (string, string) {
	user := os.Getenv("TARANTOOL_USER")
	if user == "" {
		user = "guest"
	}
	return user, os.Getenv("TARANTOOL_PASSWORD")
}

func GetConnectContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 500*time.Millisecond)
}

// Retry calls f until it succeeds or count attempts are made.
func Retry(f func() error, count int, timeout time.Duration) error {
	var err error
	for i := 0; ; i++ {
		err = f()
		if err == nil {
			return nil
		}

		if i >= count {
			break
		}

		time.Sleep(timeout)
	}

	return err
}
