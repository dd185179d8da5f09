package fee

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	receiptPrefix      = "REC-"
	receiptDateLayout  = "20060102"
	receiptSuffixChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	receiptSuffixLen   = 4
)

// ReceiptPattern matches REC-yyyyMMdd-nnnnn-XXXX
var ReceiptPattern = regexp.MustCompile(`^REC-\d{8}-\d{5}-[A-Z0-9]{4}$`)

// ReceiptDayPrefix returns the shared prefix of all receipts issued on day, e.g. "REC-20250115-"
func ReceiptDayPrefix(day time.Time) string {
	return receiptPrefix + day.Format(receiptDateLayout) + "-"
}

// FormatReceipt renders a receipt number
func FormatReceipt(day time.Time, sequence int, suffix string) string {
	return fmt.Sprintf("%s%05d-%s", ReceiptDayPrefix(day), sequence, suffix)
}

// NextReceiptSequence returns the sequence following the highest receipt of the day.
// An empty or unparsable receipt starts the day at 1.
func NextReceiptSequence(highest string) int {
	parts := strings.Split(highest, "-")
	if len(parts) < 3 {
		return 1
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return 1
	}
	return n + 1
}

// RandomReceiptSuffix returns four uppercase alphanumeric characters
func RandomReceiptSuffix() (string, error) {
	buf := make([]byte, receiptSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = receiptSuffixChars[int(b)%len(receiptSuffixChars)]
	}
	return string(buf), nil
}
