// Package encryption - personal field encryption boundary
package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// ErrDecryptionFailure stored ciphertext failed the authentication check.
//
// Tampered or foreign ciphertext must surface as this error, never as
// silently corrupted plaintext.
var ErrDecryptionFailure = errors.New("ciphertext failed authentication")

/*
FieldCipher the encryption boundary for personal field values.

Values are sealed with an AEAD under a single long-lived secret, using a fresh
random nonce per call; the nonce is bundled with the ciphertext before
encoding. The boundary has no knowledge of the domain entities whose fields
it protects, and it must never log plaintext or key material, including on
error paths.
*/
type FieldCipher interface {
	/*
		EncryptField encrypt one personal field value

			@param ctx context.Context - execution context
			@param plainText string - the value to protect, must not be empty
			@returns encoded nonce and ciphertext
	*/
	EncryptField(ctx context.Context, plainText string) (string, error)

	/*
		DecryptField decrypt one personal field value

		Exact left inverse of EncryptField for any value it produced.

			@param ctx context.Context - execution context
			@param encoded string - encoded nonce and ciphertext
			@returns the plaintext value
	*/
	DecryptField(ctx context.Context, encoded string) (string, error)
}

// fieldCipher implements FieldCipher
type fieldCipher struct {
	goutils.Component

	crypto cgoCrypto.Engine

	secret []byte
}

// FieldCipherParams field cipher init parameters
type FieldCipherParams struct {
	// Secret the long-lived symmetric secret. Key management and rotation
	// are owned by the surrounding deployment.
	Secret []byte `validate:"required"`
}

/*
NewFieldCipher define new field cipher

	@param ctx context.Context - execution context
	@param params FieldCipherParams - cipher parameters
	@returns cipher instance
*/
func NewFieldCipher(ctx context.Context, params FieldCipherParams) (FieldCipher, error) {
	// Prepare core crypto engine
	engine, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare core cryptography [%w]", err)
	}

	logTags := log.Fields{"module": "encryption", "component": "field-cipher"}

	instance := &fieldCipher{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		crypto: engine,
		secret: params.Secret,
	}

	if err := validator.New().Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid cipher init parameters [%w]", err)
	}

	// The secret must match the AEAD key length exactly
	probe, err := engine.GetAEAD(ctx, cgoCrypto.AEADTypeXChaCha20Poly1305)
	if err != nil {
		return nil, fmt.Errorf("unable to define AEAD client [%w]", err)
	}
	if len(params.Secret) != probe.ExpectedKeyLen() {
		return nil, fmt.Errorf(
			"cipher secret length %d =/= %d", len(params.Secret), probe.ExpectedKeyLen(),
		)
	}

	return instance, nil
}

// setupAEAD prepare AEAD keyed with the cipher secret. A nil nonce requests
// a fresh random nonce.
func (c *fieldCipher) setupAEAD(ctx context.Context, nonce []byte) (cgoCrypto.AEAD, error) {
	aead, err := c.crypto.GetAEAD(ctx, cgoCrypto.AEADTypeXChaCha20Poly1305)
	if err != nil {
		return nil, fmt.Errorf("unable to define AEAD client [%w]", err)
	}

	// Set the AEAD encryption key
	keyBuffer, err := c.crypto.AllocateSecureCSlice(aead.ExpectedKeyLen())
	if err != nil {
		return nil, fmt.Errorf("failed to init AEAD key buffer [%w]", err)
	}
	keyBufferCore, err := keyBuffer.GetSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to access AEAD key buffer core [%w]", err)
	}
	if copied := copy(keyBufferCore, c.secret); copied != aead.ExpectedKeyLen() {
		return nil, fmt.Errorf(
			"failed to fill AEAD key buffer core %d =/= %d", copied, aead.ExpectedKeyLen(),
		)
	}
	if err := aead.SetKey(keyBuffer); err != nil {
		return nil, fmt.Errorf("failed to install AEAD key [%w]", err)
	}

	// Set the AEAD nonce
	if len(nonce) > 0 {
		// Use existing nonce
		nonceBuffer, err := c.crypto.AllocateSecureCSlice(aead.ExpectedNonceLen())
		if err != nil {
			return nil, fmt.Errorf("failed to init AEAD nonce buffer [%w]", err)
		}
		nonceBufferCore, err := nonceBuffer.GetSlice()
		if err != nil {
			return nil, fmt.Errorf("failed to access AEAD nonce buffer core [%w]", err)
		}
		if copied := copy(nonceBufferCore, nonce); copied != aead.ExpectedNonceLen() {
			return nil, fmt.Errorf(
				"failed to fill AEAD nonce buffer core %d =/= %d", copied, aead.ExpectedNonceLen(),
			)
		}
		if err := aead.SetNonce(nonceBuffer); err != nil {
			return nil, fmt.Errorf("failed to install AEAD nonce [%w]", err)
		}
	} else {
		// Generate random nonce
		nonceBuffer, err := c.crypto.GetRandomBuf(ctx, aead.ExpectedNonceLen())
		if err != nil {
			return nil, fmt.Errorf("failed to init AEAD nonce [%w]", err)
		}
		if err := aead.SetNonce(nonceBuffer); err != nil {
			return nil, fmt.Errorf("failed to install AEAD nonce [%w]", err)
		}
	}

	return aead, nil
}

/*
EncryptField encrypt one personal field value

	@param ctx context.Context - execution context
	@param plainText string - the value to protect, must not be empty
	@returns encoded nonce and ciphertext
*/
func (c *fieldCipher) EncryptField(ctx context.Context, plainText string) (string, error) {
	// Absence must be represented by the caller as absence, not encrypted
	if len(plainText) == 0 {
		return "", fmt.Errorf("refusing to encrypt empty value")
	}

	aead, err := c.setupAEAD(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to setup AEAD client [%w]", err)
	}

	// Grab the nonce
	nonce, err := aead.Nonce().GetSlice()
	if err != nil {
		return "", fmt.Errorf("failed to get nonce [%w]", err)
	}
	nonceCopy := make([]byte, aead.ExpectedNonceLen())
	if copied := copy(nonceCopy, nonce); copied != aead.ExpectedNonceLen() {
		return "", fmt.Errorf("failed to copy nonce %d =/= %d", copied, aead.ExpectedNonceLen())
	}

	// Encrypt the plain text
	cipherText := make([]byte, aead.ExpectedCipherLen(int64(len(plainText))))
	if err := aead.Seal(ctx, 0, []byte(plainText), nil, cipherText); err != nil {
		return "", fmt.Errorf("failed to encrypt field value [%w]", err)
	}

	// Bundle nonce with ciphertext before encoding
	bundled := make([]byte, 0, len(nonceCopy)+len(cipherText))
	bundled = append(bundled, nonceCopy...)
	bundled = append(bundled, cipherText...)

	return base64.StdEncoding.EncodeToString(bundled), nil
}

/*
DecryptField decrypt one personal field value

	@param ctx context.Context - execution context
	@param encoded string - encoded nonce and ciphertext
	@returns the plaintext value
*/
func (c *fieldCipher) DecryptField(ctx context.Context, encoded string) (string, error) {
	bundled, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext encoding [%w]", ErrDecryptionFailure)
	}

	probe, err := c.crypto.GetAEAD(ctx, cgoCrypto.AEADTypeXChaCha20Poly1305)
	if err != nil {
		return "", fmt.Errorf("unable to define AEAD client [%w]", err)
	}
	nonceLen := probe.ExpectedNonceLen()
	if len(bundled) <= nonceLen {
		return "", fmt.Errorf("truncated ciphertext [%w]", ErrDecryptionFailure)
	}
	nonce := bundled[:nonceLen]
	cipherText := bundled[nonceLen:]

	aead, err := c.setupAEAD(ctx, nonce)
	if err != nil {
		return "", fmt.Errorf("failed to setup AEAD client [%w]", err)
	}

	plainLen := aead.ExpectedPlainTextLen(int64(len(cipherText)))
	if plainLen <= 0 {
		return "", fmt.Errorf("truncated ciphertext [%w]", ErrDecryptionFailure)
	}

	// Decrypt the cipher text
	plainText := make([]byte, plainLen)
	if err := aead.Unseal(ctx, 0, cipherText, nil, plainText); err != nil {
		return "", fmt.Errorf("ciphertext rejected [%w]", ErrDecryptionFailure)
	}

	return string(plainText), nil
}
