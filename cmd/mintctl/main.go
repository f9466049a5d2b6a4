package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"mintgate/cmd/internal/passphrase"
	"mintgate/config"
	"mintgate/crypto"
	"mintgate/rpc"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via MINT_RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("MINT_RPC_TOKEN")

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}

	command, rest := args[0], args[1:]
	switch command {
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "address":
		return runAddress(rest, stdout, stderr)
	case "token":
		return runToken(rest, stdout, stderr)
	case "grant", "revoke":
		if len(rest) != 2 {
			fmt.Fprintf(stderr, "Error: %s requires an address and a role.\n", command)
			return 1
		}
		method := "registry_grantRole"
		if command == "revoke" {
			method = "registry_revokeRole"
		}
		return callAndPrint(stdout, stderr, method, true, rest[0], rest[1])
	case "has-role":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "Error: has-role requires an address and a role.")
			return 1
		}
		return callAndPrint(stdout, stderr, "registry_hasRole", false, rest[0], rest[1])
	case "classify":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Error: classify requires an address.")
			return 1
		}
		return callAndPrint(stdout, stderr, "registry_classify", false, rest[0])
	case "my-role":
		return callAndPrint(stdout, stderr, "registry_myRole", true)
	case "set-restricted-start", "set-public-start":
		if len(rest) != 1 {
			fmt.Fprintf(stderr, "Error: %s requires a unix timestamp.\n", command)
			return 1
		}
		ts, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			fmt.Fprintln(stderr, "Error: invalid timestamp.")
			return 1
		}
		method := "registry_setRestrictedStart"
		if command == "set-public-start" {
			method = "registry_setPublicStart"
		}
		return callAndPrint(stdout, stderr, method, true, ts)
	case "phases":
		return callAndPrint(stdout, stderr, "registry_phases", false)
	case "mint-restricted", "mint-public":
		if len(rest) != 1 {
			fmt.Fprintf(stderr, "Error: %s requires a quantity.\n", command)
			return 1
		}
		qty, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil || qty == 0 {
			fmt.Fprintln(stderr, "Error: quantity must be a positive integer.")
			return 1
		}
		method := "issuance_restricted"
		if command == "mint-public" {
			method = "issuance_open"
		}
		return callAndPrint(stdout, stderr, method, true, strconv.FormatUint(qty, 10))
	case "token-uri", "owner-of":
		if len(rest) != 1 {
			fmt.Fprintf(stderr, "Error: %s requires an item id.\n", command)
			return 1
		}
		method := "issuance_tokenURI"
		if command == "owner-of" {
			method = "issuance_ownerOf"
		}
		return callAndPrint(stdout, stderr, method, false, rest[0])
	case "balance":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Error: balance requires an address.")
			return 1
		}
		return callAndPrint(stdout, stderr, "issuance_balanceOf", false, rest[0])
	case "total":
		return callAndPrint(stdout, stderr, "issuance_totalIssued", false)
	case "events":
		filter := map[string]interface{}{}
		if len(rest) > 0 {
			filter["type"] = rest[0]
		}
		if len(rest) > 1 {
			limit, err := strconv.Atoi(rest[1])
			if err != nil || limit < 0 {
				fmt.Fprintln(stderr, "Error: invalid limit.")
				return 1
			}
			filter["limit"] = limit
		}
		return callAndPrint(stdout, stderr, "events_list", false, filter)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q.\n", command)
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("MINT_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8645/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Error: keygen requires a keystore path.")
		return 1
	}
	if _, err := os.Stat(args[0]); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists; refusing to overwrite.\n", args[0])
		return 1
	}
	pass, err := passphrase.NewSource(config.OwnerPassphraseEnv).Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate key: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(args[0], key, pass); err != nil {
		fmt.Fprintf(stderr, "Error: write keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Keystore written to %s\nAddress: %s\n", args[0], key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Error: address requires a keystore path.")
		return 1
	}
	addr, err := crypto.KeystoreAddress(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s\n%s\n", addr.String(), addr.Hex())
	return 0
}

// runToken signs a caller token for the given address or keystore. The
// secret comes from MINT_RPC_HMAC_SECRET, matching the daemon override.
func runToken(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(stderr, "Error: token requires an address or keystore path and an optional ttl.")
		return 1
	}
	subject, err := crypto.ParseAddress(args[0])
	if err != nil {
		subject, err = crypto.KeystoreAddress(args[0])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s is neither an address nor a keystore.\n", args[0])
			return 1
		}
	}
	ttl := time.Hour
	if len(args) == 2 {
		ttl, err = time.ParseDuration(args[1])
		if err != nil || ttl <= 0 {
			fmt.Fprintln(stderr, "Error: invalid ttl.")
			return 1
		}
	}
	cfg := rpc.AuthConfig{
		HMACSecret: os.Getenv(config.HMACSecretEnv),
		Issuer:     envOr("MINT_RPC_ISSUER", "mintgate"),
		Audience:   envOr("MINT_RPC_AUDIENCE", "mintgate-rpc"),
	}
	token, err := rpc.SignToken(cfg, subject, ttl, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "Error: sign token: %v (set %s)\n", err, config.HMACSecretEnv)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		if strings.TrimSpace(rpcAuthToken) == "" {
			return nil, fmt.Errorf("this call requires MINT_RPC_TOKEN to be set (see mintctl token)")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func callRPC(method string, requireAuth bool, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int             `json:"code"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from server (HTTP %d)", resp.StatusCode)
	}
	if rpcResp.Error != nil {
		if len(rpcResp.Error.Data) > 0 {
			return nil, fmt.Errorf("error from server: %s (code %d, data %s)", rpcResp.Error.Message, rpcResp.Error.Code, rpcResp.Error.Data)
		}
		return nil, fmt.Errorf("error from server: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}

func callAndPrint(stdout, stderr io.Writer, method string, requireAuth bool, params ...interface{}) int {
	result, err := callRPC(method, requireAuth, params...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printJSONResult(stdout, result)
	return 0
}

func printJSONResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "No result.")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Fprintln(w, string(result))
		return
	}
	fmt.Fprintln(w, buf.String())
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: mintctl [--rpc URL] <command> [arguments]

Keys and tokens:
  keygen <keystore>                    Generate an owner keystore (passphrase from MINT_OWNER_PASS or prompt)
  address <keystore>                   Print the address stored in a keystore
  token <address|keystore> [ttl]       Sign a caller token (secret from MINT_RPC_HMAC_SECRET)

Registry (token calls read MINT_RPC_TOKEN):
  grant <address> <role>               Grant WHITELIST_ROLE or BLACKLIST_ROLE (owner)
  revoke <address> <role>              Revoke a role (owner)
  has-role <address> <role>            Report whether an address holds a role
  classify <address>                   Print Owner, Blacklisted, Whitelisted or Public
  my-role                              Classify the token subject
  set-restricted-start <unix>          Move the restricted phase start (owner)
  set-public-start <unix>              Move the public phase start (owner)
  phases                               Show the phase clock

Issuance:
  mint-restricted <quantity>           Issue during the restricted phase
  mint-public <quantity>               Issue during the public phase
  token-uri <id>                       Resolve an item's metadata URI
  owner-of <id>                        Show an item's owner
  balance <address>                    Count the items held by an address
  total                                Count all issued items
  events [type] [limit]                List archived registry events`)
}
