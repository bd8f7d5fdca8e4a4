// Package auth stores browser cookies per host so a run can reuse a session that already passed a site's checks.
//
// Backends are tried in order: the system keychain (go-keyring), an AES-GCM
// encrypted file keyed with pbkdf2, and read-only AUDIOGRAB_COOKIE_<HOST>
// environment variables. Lookups fall back from a host to its parent domains.
package auth
