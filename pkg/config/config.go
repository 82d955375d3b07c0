package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la herramienta (lectura vía Viper desde
// env y opcionalmente archivo .env / config.env).
type Config struct {
	App AppConfig
	WS  WSConfig
}

// AppConfig configuración general.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string // trace, debug, info, warn, error
}

// WSConfig material criptográfico y parámetros de firma para la conexión
// Web Services del banco.
type WSConfig struct {
	SigningCertPath string // certificado de firma propio (.pem o .p12)
	SigningKeyPath  string // llave privada de firma (.pem; vacío si .p12)
	KeyPassword     string // password de la llave o del .p12

	EncryptionCertPath string // certificado de cifrado propio
	EncryptionKeyPath  string // llave privada de cifrado (para descifrar respuestas)

	BankEncryptionCertPath string // certificado de cifrado del banco (para cifrar requests)
	BankSigningCertPath    string // certificado de firma del banco (para verificar respuestas)
	BankRootCertPath       string // certificado raíz del banco

	SignatureAlgorithm string // "rsa-sha256" (preferido) o "rsa-sha1" (legado)
	TemplateMode       string // "locate" (plantilla pre-autorada) o "construct"
}

// Load lee la configuración desde variables de entorno y archivo opcional.
// Las env vars tienen prioridad: APP_ENV, WS_SIGNING_CERT_PATH, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // el archivo es opcional

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "banca-ws"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		WS: WSConfig{
			SigningCertPath:        getString(v, "WS_SIGNING_CERT_PATH", ""),
			SigningKeyPath:         getString(v, "WS_SIGNING_KEY_PATH", ""),
			KeyPassword:            getString(v, "WS_KEY_PASSWORD", ""),
			EncryptionCertPath:     getString(v, "WS_ENCRYPTION_CERT_PATH", ""),
			EncryptionKeyPath:      getString(v, "WS_ENCRYPTION_KEY_PATH", ""),
			BankEncryptionCertPath: getString(v, "WS_BANK_ENCRYPTION_CERT_PATH", ""),
			BankSigningCertPath:    getString(v, "WS_BANK_SIGNING_CERT_PATH", ""),
			BankRootCertPath:       getString(v, "WS_BANK_ROOT_CERT_PATH", ""),
			SignatureAlgorithm:     getString(v, "WS_SIGNATURE_ALGORITHM", "rsa-sha256"),
			TemplateMode:           getString(v, "WS_TEMPLATE_MODE", "locate"),
		},
	}
	return cfg, nil
}

// Algorithm mapea el nombre corto configurado a la URI XMLDSig.
func (c WSConfig) Algorithm() string {
	if strings.EqualFold(c.SignatureAlgorithm, "rsa-sha1") {
		return "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	}
	return "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}
