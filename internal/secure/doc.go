// Package secure keeps looked-up passwords out of pageable memory.
//
// Lookups that ask for a non-pageable result get a SecureBuffer instead of a
// string. The buffer holds the decoded secret inside a memguard enclave:
//
//   - encrypted at rest in memory (XSalsa20Poly1305)
//   - protected from swapping via mlock
//   - wiped when destroyed
//
// Plaintext is only exposed for the duration of a callback:
//
//	err := buf.With(func(password []byte) error {
//	    return useCredential(password)
//	})
//	buf.Destroy()
//
// Callers that need the raw memguard buffer can use Open and must Destroy
// the returned LockedBuffer themselves. Call memguard.Purge at process exit
// to wipe every remaining enclave key.
package secure
