// Package command provides CLI command definitions for TokenGate.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/norlun/tokengate-go/internal/cli/output"
	"github.com/norlun/tokengate-go/internal/core/service"
)

// IssueCommand returns the issue command.
func IssueCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue",
		Usage: "Issue a new token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "payload",
				Aliases: []string{"p"},
				Usage:   "Token payload as a JSON document",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Shorthand for --payload '{\"user_id\":\"USER\"}'",
			},
		},
		Action: tokenIssue,
	}
}

// ValidateCommand returns the validate command.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a token and show its record",
		ArgsUsage: "TOKEN",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "renew",
				Aliases: []string{"r"},
				Usage:   "Slide the expiry window forward when the token is old enough",
			},
		},
		Action: tokenValidate,
	}
}

// RevokeCommand returns the revoke command.
func RevokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke",
		Usage:     "Revoke a token",
		ArgsUsage: "TOKEN",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation",
			},
		},
		Action: tokenRevoke,
	}
}

// RevokeUserCommand returns the revoke-user command.
func RevokeUserCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke-user",
		Usage:     "Revoke all tokens for a user",
		ArgsUsage: "USER_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation",
			},
		},
		Action: tokenRevokeUser,
	}
}

func tokenIssue(c *cli.Context) error {
	payload := c.String("payload")
	if payload == "" {
		if user := c.String("user"); user != "" {
			doc, err := json.Marshal(map[string]string{"user_id": user})
			if err != nil {
				return err
			}
			payload = string(doc)
		}
	}
	if payload == "" {
		return fmt.Errorf("either --payload or --user is required")
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	resp, err := rt.manager.Issue(ctx, &service.IssueRequest{Payload: json.RawMessage(payload)})
	if err != nil {
		return err
	}

	expires := time.Unix(resp.ExpiresAt, 0).UTC()
	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON, output.FormatYAML:
		formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
		return formatter.Format(os.Stdout, struct {
			Token     string    `json:"token"`
			ExpiresAt time.Time `json:"expires_at"`
		}{resp.Token, expires})
	default:
		fmt.Printf("Token issued successfully:\n")
		fmt.Printf("  Token:   %s\n", resp.Token)
		fmt.Printf("  Expires: %s\n", expires.Format(time.RFC3339))
		fmt.Printf("\n⚠️  Save this token - it cannot be retrieved later.\n")
		return nil
	}
}

func tokenValidate(c *cli.Context) error {
	tokenValue := c.Args().First()
	if tokenValue == "" {
		return fmt.Errorf("token required")
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	resp, err := rt.manager.Validate(ctx, &service.ValidateRequest{
		Token: tokenValue,
		Renew: c.Bool("renew"),
	})
	if err != nil {
		return err
	}

	result := struct {
		Token      string          `json:"token"`
		UserID     string          `json:"user_id,omitempty"`
		ModifiedAt time.Time       `json:"modified_at"`
		ExpiresAt  time.Time       `json:"expires_at"`
		Renewed    bool            `json:"renewed"`
		Payload    json.RawMessage `json:"payload" table:"wide"`
	}{
		Token:      resp.Record.Token,
		ModifiedAt: time.Unix(resp.Record.ModifiedAt, 0).UTC(),
		ExpiresAt:  time.Unix(resp.ExpiresAt, 0).UTC(),
		Renewed:    resp.Renewed,
		Payload:    resp.Record.Payload,
	}
	if uid, ok := resp.Record.UserID(); ok {
		result.UserID = uid
	}

	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, result)
}

func tokenRevoke(c *cli.Context) error {
	tokenValue := c.Args().First()
	if tokenValue == "" {
		return fmt.Errorf("token required")
	}

	if !c.Bool("force") {
		if !confirm(fmt.Sprintf("Are you sure you want to revoke token '%s'?", truncateToken(tokenValue))) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	resp, err := rt.manager.Revoke(ctx, &service.RevokeRequest{Token: tokenValue})
	if err != nil {
		return err
	}

	if resp.Revoked {
		fmt.Printf("Token %s revoked.\n", truncateToken(tokenValue))
	} else {
		fmt.Printf("Token %s was already gone.\n", truncateToken(tokenValue))
	}
	return nil
}

func tokenRevokeUser(c *cli.Context) error {
	userID := c.Args().First()
	if userID == "" {
		return fmt.Errorf("user ID required")
	}

	if !c.Bool("force") {
		fmt.Printf("This will revoke all tokens for user '%s'. Type '%s' to confirm: ", userID, userID)
		var answer string
		fmt.Scanln(&answer)
		if answer != userID {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	resp, err := rt.manager.RevokeAllForUser(ctx, &service.RevokeUserRequest{UserID: userID})
	if err != nil {
		return err
	}

	fmt.Printf("%d tokens revoked for user '%s'.\n", resp.RevokedCount, userID)
	return nil
}

// truncateToken truncates long token values for display.
func truncateToken(tokenValue string) string {
	if len(tokenValue) <= 16 {
		return tokenValue
	}
	return tokenValue[:13] + "..."
}
