package epubdoc

import (
	"encoding/xml"
	"errors"
	"strings"
)

// ErrDRMProtected is returned for archives whose content is encrypted.
var ErrDRMProtected = errors.New("epub: DRM-protected content cannot be processed")

// encryptionXML represents the structure of META-INF/encryption.xml.
type encryptionXML struct {
	XMLName       xml.Name        `xml:"encryption"`
	EncryptedData []encryptedData `xml:"EncryptedData"`
}

type encryptedData struct {
	Method struct {
		Algorithm string `xml:"Algorithm,attr"`
	} `xml:"EncryptionMethod"`
	Cipher struct {
		Reference struct {
			URI string `xml:"URI,attr"`
		} `xml:"CipherReference"`
	} `xml:"CipherData"`
}

// checkForDRM rejects archives with an Adobe rights file or encrypted
// content documents. Obfuscated fonts are fine: they are never rendered.
func checkForDRM(a *archive) error {
	if a.has("META-INF/rights.xml") {
		return ErrDRMProtected
	}
	if !a.has("META-INF/encryption.xml") {
		return nil
	}

	data, err := a.read("META-INF/encryption.xml")
	if err != nil {
		return ErrDRMProtected
	}
	var enc encryptionXML
	if err := xml.Unmarshal(data, &enc); err != nil {
		// Unparseable encryption info is treated as DRM
		return ErrDRMProtected
	}
	for _, ed := range enc.EncryptedData {
		if isFontObfuscation(ed.Method.Algorithm) {
			continue
		}
		if isContentFile(ed.Cipher.Reference.URI) {
			return ErrDRMProtected
		}
	}
	return nil
}

// isFontObfuscation reports the IDPF and Adobe font mangling algorithms.
func isFontObfuscation(algorithm string) bool {
	return strings.Contains(algorithm, "obfuscation") &&
		(strings.Contains(algorithm, "idpf.org") || strings.Contains(algorithm, "adobe.com"))
}

// isContentFile reports URIs of markup and style documents.
func isContentFile(uri string) bool {
	uri = strings.ToLower(uri)
	for _, ext := range []string{".xhtml", ".html", ".htm", ".xml", ".css"} {
		if strings.HasSuffix(uri, ext) {
			return true
		}
	}
	return false
}
