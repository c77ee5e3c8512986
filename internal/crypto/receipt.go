package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// NewReceiptNumber builds a receipt number of the form
// RCPT-<unix-millis>-<4 digits>. The timestamp prefix keeps numbers
// roughly ordered; the random suffix separates payments recorded in
// the same millisecond. The fee_payments table carries a unique
// constraint on receipt_no as the hard guarantee.
func NewReceiptNumber() string {
	suffix, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand failing means the platform RNG is broken.
		panic(err)
	}
	return fmt.Sprintf("RCPT-%d-%04d", time.Now().UnixMilli(), suffix.Int64()+1000)
}
