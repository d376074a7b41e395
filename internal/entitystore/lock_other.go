//go:build !unix

package entitystore

// Advisory file locks are unix-only; the in-process mutex still applies.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
