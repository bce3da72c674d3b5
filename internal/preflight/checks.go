package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"folio/internal/lifecycle"
	"folio/internal/naming"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRedis verifies that the lock server answers a PING.
// It uses a 2-second timeout and a single attempt.
func CheckRedis(ctx context.Context, redisURL string) Result {
	const name = "Redis"

	if strings.TrimSpace(redisURL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	options.MaxRetries = -1
	client := redis.NewClient(options)
	defer client.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: summarizeRedisError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", options.Addr)}
}

// CheckTransitionTable verifies that a custom transition table loads.
func CheckTransitionTable(path string) Result {
	const name = "Transition table"

	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Detail: "built-in"}
	}
	table, err := lifecycle.LoadTableFile(path, lifecycle.DefaultRegistry())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d rules)", path, table.Len())}
}

// CheckRenamingRule verifies that the organize rule expands to a path.
func CheckRenamingRule(rule string) Result {
	const name = "Renaming rule"

	if err := naming.Validate(rule); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: rule}
}

func summarizeRedisError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "ping timed out (redis unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ping timed out (redis unreachable)"
	}
	return err.Error()
}
