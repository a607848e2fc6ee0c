// Package qr renders payment URLs as QR images for checkout pages.
package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/cryptonow/paygate/types"
)

// Size is the pixel width and height of generated images.
const Size = 512

// DataURI renders content as a PNG QR code wrapped in a data URI,
// ready for an img tag. Error correction level M matches what mobile
// wallet scanners expect.
func DataURI(content string) (string, error) {
	if content == "" {
		return "", types.NewPaymentError(types.ErrCodeInvalidRequest, "cannot encode empty content", nil)
	}
	png, err := qrcode.Encode(content, qrcode.Medium, Size)
	if err != nil {
		return "", types.Errorf(types.ErrCodeSerializationFailed, "render qr: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
