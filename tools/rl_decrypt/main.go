package main

import (
	"fmt"
	"os"

	"rentledger/internal/config"
	"rentledger/internal/crypto"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: go run ./tools/rl_decrypt <ciphertext>")
		os.Exit(1)
	}
	cfg := config.Load()
	plain, err := crypto.DecryptString(cfg.Sec.AESKey, os.Args[1])
	if err != nil {
		panic(err)
	}
	fmt.Println(plain)
}
