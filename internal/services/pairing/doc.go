// Package pairing issues and resolves the short numeric codes two people
// exchange to link their installations.
//
// Codes are six uniformly random digits, published to a shared
// domain.Directory with set-if-absent semantics, valid for one hour by
// default and consumable exactly once. Expired codes are purged lazily when
// they are looked up or when they occupy a value being issued; there is no
// background sweep.
package pairing
