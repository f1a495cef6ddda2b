package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/cipher_mock.go -package=mock

// Cipher is the symmetric-encryption collaborator of the sync engine. It
// knows nothing about the network, storage, or the dataset shape; it only
// seals and opens strings with a locally derived secret.
//
// The engine uses it for the snapshot cached at rest in the local store.
// Remote content is exchanged in the clear dataset JSON form and is outside
// this contract.
type Cipher interface {
	// Encrypt seals plaintext and returns a base64 blob safe for the
	// local store.
	Encrypt(plaintext string) (string, error)

	// Decrypt opens a blob produced by Encrypt. Returns an error when the
	// blob is corrupted or was sealed under a different secret.
	Decrypt(ciphertext string) (string, error)
}
