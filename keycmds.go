package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/signer"
)

func GetKeyCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "keys",
		Aliases: []string{"k"},
		Usage:   "Signing account related commands",
		Commands: []*cli.Command{
			{
				Name:    "new",
				Aliases: []string{"n"},
				Usage:   "Generate a new account and print its mnemonic",
				Action:  KeysNew,
			},
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List the accounts the local key store can sign for",
				Action:  KeysList,
			},
		},
	}
}

func KeysNew(ctx context.Context, command *cli.Command) error {
	addr, phrase, err := signer.NewAccount()
	if err != nil {
		return err
	}
	fmt.Println("Address:", addr)
	fmt.Println("Mnemonic:", phrase)
	fmt.Printf("\nAdd it to your env (or .env file) to sign with it, ie:\n%s_1=\"%s\"\n", signer.MnemonicEnvPrefix, phrase)
	return nil
}

func KeysList(ctx context.Context, command *cli.Command) error {
	accounts := App.signer.Accounts()
	if len(accounts) == 0 {
		fmt.Printf("no accounts loaded, set %s* env vars w/ account mnemonics\n", signer.MnemonicEnvPrefix)
		return nil
	}
	for _, account := range accounts {
		fmt.Println(account)
	}
	return nil
}
