package acrcloud

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"
)

const (
	identifyPath     = "/v1/identify"
	signatureVersion = "1"
)

// DataType selects how the identify endpoint interprets the uploaded sample
type DataType string

const (
	DataTypeAudio       DataType = "audio"
	DataTypeFingerprint DataType = "fingerprint"
)

// Sign computes the identify request signature:
// base64(HMAC-SHA1(secret, "POST\n/v1/identify\n{key}\n{type}\n1\n{timestamp}")).
func Sign(accessKey, accessSecret string, dataType DataType, timestamp int64) string {
	stringToSign := strings.Join([]string{
		"POST",
		identifyPath,
		accessKey,
		string(dataType),
		signatureVersion,
		strconv.FormatInt(timestamp, 10),
	}, "\n")

	mac := hmac.New(sha1.New, []byte(accessSecret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
