// Package dblock serialises test packages that truncate the same database.
package dblock

import (
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"time"
)

const (
	basePort    = 45000
	portSpread  = 1000
	waitTimeout = 10 * time.Minute
)

// Acquire blocks until no other test binary holds the lock for DATABASE_URL
// and returns its release func. Packages pointed at different databases do
// not wait on each other.
func Acquire() func() {
	addr := lockAddr(os.Getenv("DATABASE_URL"))
	deadline := time.Now().Add(waitTimeout)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { ln.Close() }
		}
		if time.Now().After(deadline) {
			panic(fmt.Sprintf("dblock: %s still held after %s", addr, waitTimeout))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func lockAddr(dsn string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dsn))
	return fmt.Sprintf("127.0.0.1:%d", basePort+int(h.Sum32()%portSpread))
}
