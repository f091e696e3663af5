package crypto

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
)

func TestNewConfigEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantError bool
	}{
		{name: "valid key", key: "test-encryption-key-32-bytes!!!!", wantError: false},
		{name: "short key", key: "short", wantError: false},
		{name: "long key", key: strings.Repeat("a", 64), wantError: false},
		{name: "empty key", key: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encryptor, err := NewConfigEncryptor(tt.key)

			if tt.wantError {
				if err == nil {
					t.Errorf("NewConfigEncryptor() expected error but got none")
				}
				if encryptor != nil {
					t.Errorf("NewConfigEncryptor() expected nil encryptor but got %v", encryptor)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewConfigEncryptor() unexpected error = %v", err)
			}
			if encryptor == nil {
				t.Fatalf("NewConfigEncryptor() returned nil encryptor")
			}
		})
	}
}

func TestEncryptFor_RoundTrip(t *testing.T) {
	encryptor, err := NewConfigEncryptor("12345678901234567890123456789012")
	if err != nil {
		t.Fatalf("NewConfigEncryptor() error = %v", err)
	}

	secrets := []string{"s", "1234567890", "unicode-秘密-🔑", strings.Repeat("x", 4096)}
	for _, secret := range secrets {
		stored, err := encryptor.EncryptFor("app-1", secret)
		if err != nil {
			t.Fatalf("EncryptFor() error = %v", err)
		}
		if !IsEncrypted(stored) {
			t.Errorf("EncryptFor() result %q lacks the prefix", stored)
		}
		if strings.Contains(stored, secret) {
			t.Errorf("EncryptFor() leaked the plaintext")
		}

		got, err := encryptor.DecryptFor("app-1", stored)
		if err != nil {
			t.Fatalf("DecryptFor() error = %v", err)
		}
		if got != secret {
			t.Errorf("DecryptFor() = %q, want %q", got, secret)
		}
	}
}

func TestEncryptFor_RandomNonce(t *testing.T) {
	encryptor, _ := NewConfigEncryptor("passphrase")

	first, _ := encryptor.EncryptFor("app-1", "secret")
	second, _ := encryptor.EncryptFor("app-1", "secret")
	if first == second {
		t.Errorf("EncryptFor() produced identical ciphertexts")
	}
}

func TestEncryptFor_EmptySecret(t *testing.T) {
	encryptor, _ := NewConfigEncryptor("passphrase")

	if _, err := encryptor.EncryptFor("app-1", ""); err == nil {
		t.Errorf("EncryptFor() expected error for empty secret")
	}
}

func TestDecryptFor_Failures(t *testing.T) {
	encryptor, _ := NewConfigEncryptor("passphrase")
	other, _ := NewConfigEncryptor("another-passphrase")

	stored, err := encryptor.EncryptFor("app-1", "secret")
	if err != nil {
		t.Fatalf("EncryptFor() error = %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, ciphertextPrefix))
	raw[len(raw)-1] ^= 0xff
	tampered := ciphertextPrefix + base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name      string
		encryptor *ConfigEncryptor
		appid     string
		value     string
	}{
		{"wrong appid", encryptor, "app-2", stored},
		{"wrong key", other, "app-1", stored},
		{"tampered", encryptor, "app-1", tampered},
		{"plaintext", encryptor, "app-1", "secret"},
		{"bad base64", encryptor, "app-1", ciphertextPrefix + "!!!"},
		{"too short", encryptor, "app-1", ciphertextPrefix + base64.StdEncoding.EncodeToString([]byte("abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := tt.encryptor.DecryptFor(tt.appid, tt.value); err == nil {
				t.Errorf("DecryptFor() = %q, expected an error", got)
			}
		})
	}
}

func TestConfigEncryptor_Concurrent(t *testing.T) {
	encryptor, _ := NewConfigEncryptor("passphrase")

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := encryptor.EncryptFor("app", "secret")
			if err != nil {
				errs <- err
				return
			}
			if _, err := encryptor.DecryptFor("app", stored); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent use failed: %v", err)
	}
}

func BenchmarkEncryptFor(b *testing.B) {
	encryptor, _ := NewConfigEncryptor("passphrase")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = encryptor.EncryptFor("app", "secret")
	}
}
