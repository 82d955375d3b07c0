package xmlenc

import "errors"

// ErrDecryption es deliberadamente opaco: no distingue llave irresoluble,
// padding inválido ni fallo de MAC, para no exponer un oráculo de padding.
var (
	ErrDecryption = errors.New("xmlenc: no se pudo descifrar el documento")
	ErrEncryption = errors.New("xmlenc: no se pudo cifrar el documento")
)
