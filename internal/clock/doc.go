// Package clock abstracts time so retry and expiry logic can be driven
// deterministically in tests. Production code uses Real; tests use Fake and
// move time forward with Advance.
package clock
