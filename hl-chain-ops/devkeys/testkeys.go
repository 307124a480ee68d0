package devkeys

// Sample key material of the local network. It funds throwaway local chains only.
const (
	validatorMnemonic    = "legend auto stand worry powder idle recall there wet ancient universe badge ability blame hidden body steak april boost thrive room piece city type"
	hplValidatorMnemonic = "guard evolve region sentence danger sort despair eye deputy brave trim actor left recipe debate document upgrade sustain bus cage afford half demand pigeon"
	hplRelayerMnemonic   = "moral item damp melt gloom vendor notice head assume balance doctor retire fashion trim find biology saddle undo switch fault cattle toast drip empty"
	account1Mnemonic     = "stomach employ hidden risk fork parent dream noodle inside banner stable private grain nothing absent brave metal math hybrid amused move affair move muffin"
	account2Mnemonic     = "say merry worry steak hedgehog sing spike fold empower pluck feel grass omit finish biology traffic dog sea ozone hint region service one gown"
	account3Mnemonic     = "maple often cargo polar eager jaguar eight inflict once nest nice swamp weasel address swift physical valid culture cheese trumpet find dinosaur curve tray"
)

// TestKeyring returns the sample keyring. The CLI only uses it behind an explicit --dev-keys.
func TestKeyring() *Keyring {
	return &Keyring{
		Deployer:  "validator",
		Linker:    "validator",
		Validator: "hpl-validator",
		Relayer:   "hpl-relayer",
		Keys: []NamedKey{
			{Name: "hpl-relayer", Mnemonic: hplRelayerMnemonic},
			{Name: "validator", Mnemonic: validatorMnemonic},
			{Name: "account1", Mnemonic: account1Mnemonic},
			{Name: "account2", Mnemonic: account2Mnemonic},
			{Name: "account3", Mnemonic: account3Mnemonic},
			{Name: "hpl-validator", Mnemonic: hplValidatorMnemonic},
		},
	}
}
