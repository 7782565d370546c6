// Package trust builds the TLS trust configuration for the broker connection.
//
// Two trust modes exist:
//   - SystemDefault: the host's certificate store.
//   - CustomCertificate: a single user-supplied certificate that becomes the
//     only trust anchor. This pins the broker; system roots are not consulted.
//
// Builder failures are recoverable. The connection manager falls back to
// SystemDefault and reports the degraded mode instead of aborting.
package trust
