package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"lendingpool/cmd/internal/passphrase"
	"lendingpool/crypto"
)

const (
	keygenCommand  = "keygen"
	addressCommand = "address"
	tokenCommand   = "token"
	getCommand     = "get"
	postCommand    = "post"

	defaultPassEnv   = "LENDCTL_KEYSTORE_PASS"
	defaultSecretEnv = "LENDINGD_JWT_SECRET"
	defaultTokenEnv  = "LENDCTL_TOKEN"
	defaultURL       = "http://127.0.0.1:8080"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case keygenCommand:
		err = runKeygen(os.Args[2:], os.Stdout)
	case addressCommand:
		err = runAddress(os.Args[2:], os.Stdout)
	case tokenCommand:
		err = runToken(os.Args[2:], os.Stdout)
	case getCommand:
		err = runRequest(http.MethodGet, os.Args[2:], os.Stdout)
	case postCommand:
		err = runRequest(http.MethodPost, os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: lendctl <command> [flags]

Commands:
  %-9s generate an account key and store it in an encrypted keystore
  %-9s print the account address held by a keystore
  %-9s mint a bearer token for lendingd
  %-9s issue a GET request against lendingd
  %-9s issue a POST request with a JSON body against lendingd
`, keygenCommand, addressCommand, tokenCommand, getCommand, postCommand)
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ContinueOnError)
	keystorePath := fs.String("keystore", "account.keystore", "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*force {
		if _, err := os.Stat(*keystorePath); err == nil {
			return fmt.Errorf("keystore file %s already exists (use --force to overwrite)", *keystorePath)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv, "keystore passphrase").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	fmt.Fprintln(out, key.PubKey().Address().String())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(addressCommand, flag.ContinueOnError)
	keystorePath := fs.String("keystore", "account.keystore", "Path to the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := keystoreAddress(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, addr.String())
	return nil
}

func keystoreAddress(path, passEnv string) (crypto.Address, error) {
	pass, err := passphrase.NewSource(passEnv, "keystore passphrase").Get()
	if err != nil {
		return crypto.Address{}, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("failed to open keystore: %w", err)
	}
	return key.PubKey().Address(), nil
}

type tokenRequest struct {
	Subject  string
	Scopes   []string
	Issuer   string
	Audience string
	TTL      time.Duration
	Secret   string
	Now      time.Time
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ContinueOnError)
	subject := fs.String("sub", "", "Account address the token acts for")
	keystorePath := fs.String("keystore", "", "Derive the subject from this keystore instead of -sub")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	scopes := fs.String("scopes", "lending:read lending:write", "Space or comma separated scopes")
	issuer := fs.String("issuer", "lendingd", "Token issuer")
	audience := fs.String("audience", "", "Token audience")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "Environment variable containing the HMAC secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sub := strings.TrimSpace(*subject)
	if *keystorePath != "" {
		addr, err := keystoreAddress(*keystorePath, *passEnv)
		if err != nil {
			return err
		}
		sub = addr.String()
	}
	secret, err := passphrase.NewSource(*secretEnv, "jwt secret").Get()
	if err != nil {
		return err
	}
	signed, err := mintToken(tokenRequest{
		Subject:  sub,
		Scopes:   strings.FieldsFunc(*scopes, func(r rune) bool { return r == ',' || r == ' ' }),
		Issuer:   *issuer,
		Audience: *audience,
		TTL:      *ttl,
		Secret:   secret,
		Now:      time.Now(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, signed)
	return nil
}

func mintToken(req tokenRequest) (string, error) {
	if _, err := crypto.DecodeAddress(req.Subject); err != nil {
		return "", fmt.Errorf("subject must be an account address: %w", err)
	}
	if len(req.Scopes) == 0 {
		return "", errors.New("at least one scope is required")
	}
	if req.TTL <= 0 {
		return "", errors.New("ttl must be positive")
	}
	if strings.TrimSpace(req.Secret) == "" {
		return "", errors.New("secret required")
	}
	claims := jwt.MapClaims{
		"sub":   req.Subject,
		"scope": strings.Join(req.Scopes, " "),
		"iat":   req.Now.Unix(),
		"exp":   req.Now.Add(req.TTL).Unix(),
	}
	if req.Issuer != "" {
		claims["iss"] = req.Issuer
	}
	if req.Audience != "" {
		claims["aud"] = req.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(req.Secret)))
}

func runRequest(method string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(strings.ToLower(method), flag.ContinueOnError)
	baseURL := fs.String("url", defaultURL, "lendingd base URL")
	tokenEnv := fs.String("token-env", defaultTokenEnv, "Environment variable holding the bearer token")
	body := fs.String("data", "", "JSON request body (POST only)")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%s requires exactly one path argument", strings.ToLower(method))
	}
	path := fs.Arg(0)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader
	if method == http.MethodPost {
		payload := strings.TrimSpace(*body)
		if payload == "" {
			payload = "{}"
		}
		if !json.Valid([]byte(payload)) {
			return errors.New("-data must be valid JSON")
		}
		reader = bytes.NewBufferString(payload)
	}
	req, err := http.NewRequest(method, strings.TrimRight(*baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(os.Getenv(*tokenEnv)); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Fprintln(out, strings.TrimSpace(string(data)))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("lendingd returned %s", resp.Status)
	}
	return nil
}
