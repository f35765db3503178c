package auth_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/netguard/auth"
)

func ExampleJWTSource() {
	cfg := auth.JWTConfig{Issuer: "netguard", Audience: "media-api", Subject: "uploader"}
	key := []byte("example-signing-key-example-key!")

	src, err := auth.NewJWTSource(cfg, key)
	if err != nil {
		fmt.Println(err)
		return
	}
	token, _ := src.Token(context.Background())

	claims, err := auth.NewVerifier(cfg, auth.NewStaticKeyProvider(key)).Verify(context.Background(), token)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(claims.Subject, claims.Audience)
	// Output:
	// uploader [media-api]
}
