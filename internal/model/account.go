package model

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"reflect"

	"github.com/near/borsh-go"
)

// DiscriminatorSize is the length of the account type prefix.
const DiscriminatorSize = 8

var (
	ErrDiscriminator = errors.New("account discriminator mismatch")
	ErrShortAccount  = errors.New("account data too short")
)

// Account is a persisted program record.
type Account interface {
	AccountName() string
}

// Discriminator returns sha256("account:<name>")[:8].
func Discriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [DiscriminatorSize]byte
	copy(out[:], sum[:DiscriminatorSize])
	return out
}

// MarshalAccount encodes acc as discriminator followed by its borsh body.
func MarshalAccount(acc Account) ([]byte, error) {
	if acc == nil {
		return nil, fmt.Errorf("marshal account: nil")
	}
	// borsh treats pointers as Option, so always encode the struct value.
	value := reflect.Indirect(reflect.ValueOf(acc)).Interface()
	body, err := borsh.Serialize(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", acc.AccountName(), err)
	}
	disc := Discriminator(acc.AccountName())
	out := make([]byte, 0, DiscriminatorSize+len(body))
	out = append(out, disc[:]...)
	return append(out, body...), nil
}

// UnmarshalAccount decodes data into out, which must be a pointer.
func UnmarshalAccount(data []byte, out Account) error {
	if len(data) < DiscriminatorSize {
		return ErrShortAccount
	}
	disc := Discriminator(out.AccountName())
	if !bytes.Equal(data[:DiscriminatorSize], disc[:]) {
		return fmt.Errorf("%w: want %s", ErrDiscriminator, out.AccountName())
	}
	if err := borsh.Deserialize(out, data[DiscriminatorSize:]); err != nil {
		return fmt.Errorf("unmarshal %s: %w", out.AccountName(), err)
	}
	return nil
}

// Reader is the read side of a state view.
type Reader interface {
	Get(key string) ([]byte, bool, error)
}

// Writer is the write side of a state view.
type Writer interface {
	Put(key string, value []byte)
}

// LoadAccount decodes the account stored at key into out. It reports false
// when the key is absent.
func LoadAccount(r Reader, key string, out Account) (bool, error) {
	data, ok, err := r.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := UnmarshalAccount(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// StoreAccount encodes acc and stages it at key.
func StoreAccount(w Writer, key string, acc Account) error {
	data, err := MarshalAccount(acc)
	if err != nil {
		return err
	}
	w.Put(key, data)
	return nil
}
