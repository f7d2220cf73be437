package chunk

import "bytes"

// Refine returns the part of an accumulated chunk body that follows the
// last embedded BEGIN marker, or body itself when there is none. The result
// aliases body.
func Refine(body []byte) []byte {
	i := bytes.LastIndex(body, beginMarker[:])
	if i < 0 {
		return body
	}
	return body[i+DelimiterSize:]
}
