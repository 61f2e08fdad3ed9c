package provider

// EncryptedData carries a ciphertext and the nonce used to produce it.
// A fresh nonce is generated for every Encrypt call.
type EncryptedData struct {
	ciphertext []byte
	nonce      []byte
}

// NewEncryptedData creates an EncryptedData value.
func NewEncryptedData(ciphertext, nonce []byte) EncryptedData {
	ct := make([]byte, len(ciphertext))
	copy(ct, ciphertext)
	n := make([]byte, len(nonce))
	copy(n, nonce)
	return EncryptedData{ciphertext: ct, nonce: n}
}

// Ciphertext returns a copy of the ciphertext.
func (d EncryptedData) Ciphertext() []byte {
	result := make([]byte, len(d.ciphertext))
	copy(result, d.ciphertext)
	return result
}

// Nonce returns a copy of the nonce.
func (d EncryptedData) Nonce() []byte {
	result := make([]byte, len(d.nonce))
	copy(result, d.nonce)
	return result
}

// CryptoProvider encrypts and decrypts byte payloads. Implementations use
// AES-256-GCM with 96-bit nonces; the key is supplied at construction.
type CryptoProvider interface {
	Encrypt(plaintext []byte) (EncryptedData, error)
	Decrypt(data EncryptedData) ([]byte, error)
	ProviderName() string
}
