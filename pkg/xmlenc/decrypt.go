// Descifrador: localiza el bloque EncryptedData, resuelve la llave privada
// por KeyName en el keys manager, destransporta la llave de sesión y descifra
// el contenido. Si el contenido era un elemento XML lo reemplaza en el lugar;
// si no, entrega los bytes crudos (contrato de decrypt3 de xmlsec1).

package xmlenc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"
	"github.com/jhoicas/banca-ws/pkg/xmldsig"
)

// Result es el resultado del descifrado: Replaced apunta al elemento XML que
// sustituyó al EncryptedData, o Raw contiene el plaintext no-XML.
type Result struct {
	Replaced *etree.Element
	Raw      []byte
}

// Decrypt localiza y descifra el EncryptedData del documento. Todo fallo
// criptográfico o de resolución se reporta como ErrDecryption sin detalle.
func Decrypt(doc *etree.Document, km *xmldsig.KeysManager) (*Result, error) {
	root := doc.Root()
	if root == nil {
		return nil, ErrDecryption
	}
	encData := findEncryptedData(root)
	if encData == nil {
		return nil, ErrDecryption
	}

	contentAlg := algorithmOf(childLocal(encData, "EncryptionMethod"))
	if _, ok := keySizeForContentAlg(contentAlg); !ok {
		return nil, ErrDecryption
	}
	sessionKey, err := unwrapSessionKey(encData, km)
	if err != nil {
		return nil, ErrDecryption
	}
	ciphertext, err := cipherValueOf(encData)
	if err != nil {
		return nil, ErrDecryption
	}
	plaintext, err := decryptContent(ciphertext, sessionKey, contentAlg)
	if err != nil {
		return nil, ErrDecryption
	}

	encType := encData.SelectAttrValue("Type", "")
	if encType != TypeElement && encType != TypeContent {
		return &Result{Raw: plaintext}, nil
	}
	plainDoc := etree.NewDocument()
	if err := plainDoc.ReadFromBytes(plaintext); err != nil || plainDoc.Root() == nil {
		return nil, ErrDecryption
	}
	replacement := plainDoc.Root()
	plainDoc.RemoveChild(replacement)
	if parent := encData.Parent(); parent != nil {
		idx := encData.Index()
		parent.RemoveChild(encData)
		parent.InsertChildAt(idx, replacement)
	} else {
		doc.SetRoot(replacement)
	}
	return &Result{Replaced: replacement}, nil
}

// unwrapSessionKey resuelve la llave privada (KeyName del EncryptedKey o la
// única llave del manager) y destransporta la llave de sesión.
func unwrapSessionKey(encData *etree.Element, km *xmldsig.KeysManager) ([]byte, error) {
	encKey := findLocal(encData, "EncryptedKey")
	if encKey == nil {
		return nil, ErrDecryption
	}
	transportAlg := algorithmOf(childLocal(encKey, "EncryptionMethod"))

	var managed *xmldsig.ManagedKey
	if keyName := findLocal(encKey, "KeyName"); keyName != nil {
		managed = km.ByName(strings.TrimSpace(keyName.Text()))
	}
	if managed == nil {
		managed = km.Single()
	}
	if managed == nil || managed.PrivateKey == nil {
		return nil, ErrDecryption
	}

	wrapped, err := cipherValueOf(encKey)
	if err != nil {
		return nil, ErrDecryption
	}
	switch transportAlg {
	case AlgRSAOAEP:
		return rsa.DecryptOAEP(sha1.New(), rand.Reader, managed.PrivateKey, wrapped, nil)
	case AlgRSA15:
		return rsa.DecryptPKCS1v15(rand.Reader, managed.PrivateKey, wrapped)
	}
	return nil, ErrDecryption
}

func decryptContent(ciphertext, key []byte, alg string) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if isGCM(alg) {
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		if len(ciphertext) < gcm.NonceSize() {
			return nil, ErrDecryption
		}
		iv, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
		return gcm.Open(nil, iv, sealed, nil)
	}
	if len(ciphertext) < aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryption
	}
	iv, body := ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	padLen := int(plain[len(plain)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(plain) {
		return nil, ErrDecryption
	}
	return plain[:len(plain)-padLen], nil
}

// ── Navegación local ──────────────────────────────────────────────────────────

func findEncryptedData(root *etree.Element) *etree.Element {
	return findLocal(root, "EncryptedData")
}

// findLocal devuelve el primer descendiente (o el propio el) con el tag local.
func findLocal(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findLocal(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func childLocal(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func algorithmOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("Algorithm", "")
}

// cipherValueOf extrae y decodifica CipherData/CipherValue del elemento.
func cipherValueOf(el *etree.Element) ([]byte, error) {
	cipherData := childLocal(el, "CipherData")
	if cipherData == nil {
		return nil, ErrDecryption
	}
	cipherValue := childLocal(cipherData, "CipherValue")
	if cipherValue == nil {
		return nil, ErrDecryption
	}
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, cipherValue.Text())
	return base64.StdEncoding.DecodeString(compact)
}
