package contract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"camrent/internal/domain"
)

// MaxSignatureSide bounds either dimension of a signature image. Larger
// images are refused before their pixels are decoded.
const MaxSignatureSide = 4096

// SignaturePayload strips the "<mime>;base64," prefix of a data URI and
// rejects blank input. Only the part after the first comma is transmitted.
func SignaturePayload(dataURI string) (string, error) {
	payload := strings.TrimSpace(dataURI)
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", domain.E(domain.KindEmptySignature, "contract.sign", "signature is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindEmptySignature, Op: "contract.sign", Message: "signature image is unreadable", Err: err}
	}
	if len(raw) == 0 {
		return "", domain.E(domain.KindEmptySignature, "contract.sign", "signature is empty")
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil &&
		(cfg.Width > MaxSignatureSide || cfg.Height > MaxSignatureSide) {
		return "", domain.E(domain.KindEmptySignature, "contract.sign",
			fmt.Sprintf("signature image is too large: %dx%d", cfg.Width, cfg.Height))
	}
	if blankImage(raw) {
		return "", domain.E(domain.KindEmptySignature, "contract.sign", "signature is empty")
	}
	return payload, nil
}

// blankImage reports whether raw decodes to an image with no strokes: every
// pixel fully transparent or identical. Undecodable data is not blank.
// Callers bound the image size first.
func blankImage(raw []byte) bool {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 && a0 == 0 {
				continue
			}
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				return false
			}
		}
	}
	return true
}
