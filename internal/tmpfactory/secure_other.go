//go:build !unix

package tmpfactory

// secureRoot is a no-op where POSIX ownership does not apply.
func secureRoot(string) error {
	return nil
}
