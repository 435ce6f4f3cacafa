package wallet

// CredentialData holds recovered mnemonic words, the user passphrase and the
// single password hash for the duration of one flow. It must be zeroed on
// every exit path, success or failure.
type CredentialData struct {
	Mnemonics          [MaxMnemonicWords][MaxMnemonicWordLength]byte
	Passphrase         [MaxPassphraseLength]byte
	PasswordSingleHash [BlockSize]byte
}

// SetMnemonic copies word into slot i, truncated to the word length bound.
func (c *CredentialData) SetMnemonic(i int, word string) {
	if i < 0 || i >= MaxMnemonicWords {
		return
	}

	Zero(c.Mnemonics[i][:])
	copy(c.Mnemonics[i][:], word)
}

// SetPassphrase copies the passphrase, truncated to its bound.
func (c *CredentialData) SetPassphrase(passphrase string) {
	Zero(c.Passphrase[:])
	copy(c.Passphrase[:], passphrase)
}

// Zero wipes all credential material in place.
func (c *CredentialData) Zero() {
	for i := range c.Mnemonics {
		Zero(c.Mnemonics[i][:])
	}

	Zero(c.Passphrase[:])
	Zero(c.PasswordSingleHash[:])
}
