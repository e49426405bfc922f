package booking

import (
    "crypto/rand"
    "encoding/hex"
)

// verificationAlphabet deliberately omits 0/O, 1/I and similar pairs so
// the code survives being read out loud at the platform.
const verificationAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// newReservationHash generates the opaque identifier handed to the
// client for a new ticket. The underlying call to crypto/rand ensures
// cryptographically secure random bytes; 32 bytes yield a 64 character
// hex string. The hash is unique and stable once issued.
func newReservationHash() (string, error) {
    b := make([]byte, 32)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}

// newVerificationCode generates the short human-readable code printed
// alongside the scannable hash.
func newVerificationCode() (string, error) {
    b := make([]byte, 8)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    out := make([]byte, len(b))
    for i, v := range b {
        out[i] = verificationAlphabet[int(v)%len(verificationAlphabet)]
    }
    return string(out), nil
}
