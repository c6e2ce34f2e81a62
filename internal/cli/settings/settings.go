package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/tui"
)

type SettingsCmd struct {
	List  SettingsListCmd  `cmd:"" help:"List stored settings." default:"1"`
	Get   SettingsGetCmd   `cmd:"" help:"Print one setting."`
	Set   SettingsSetCmd   `cmd:"" help:"Store a setting."`
	Unset SettingsUnsetCmd `cmd:"" help:"Remove a setting."`
	Pin   PinCmd           `cmd:"" help:"Manage the PIN lock for the interactive view."`
}

type SettingsListCmd struct{}

func (c *SettingsListCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	theme, err := ctx.Store.GetString(ctx.Ctx, constants.SettingTheme, constants.DefaultTheme)
	if err != nil {
		return err
	}
	optIn, err := ctx.Store.GetBool(ctx.Ctx, constants.SettingTelemetryOptIn, constants.DefaultTelemetryOptIn)
	if err != nil {
		return err
	}

	ctx.Println("Current Settings:")
	ctx.Printf("  %-22s %s\n", constants.SettingTheme, theme)
	ctx.Printf("  %-22s %v\n", constants.SettingTelemetryOptIn, optIn)
	for _, s := range settings {
		switch s.Key {
		case constants.SettingTheme, constants.SettingTelemetryOptIn:
			continue
		case constants.SettingPinHash:
			ctx.Printf("  %-22s %s\n", "pin", "set")
			continue
		}
		ctx.Printf("  %-22s %s\n", s.Key, string(s.Value))
	}
	return nil
}

type SettingsGetCmd struct {
	Key string `arg:"" help:"Setting key."`
}

func (c *SettingsGetCmd) Run(ctx *cli.Context) error {
	var value json.RawMessage
	found, err := ctx.Store.GetSetting(ctx.Ctx, c.Key, &value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("setting %q is not set", c.Key)
	}
	ctx.Printf("%s\n", value)
	return nil
}

type SettingsSetCmd struct {
	Key   string `arg:"" help:"Setting key."`
	Value string `arg:"" help:"Value; parsed as JSON when possible, stored as a string otherwise."`
}

func (c *SettingsSetCmd) Run(ctx *cli.Context) error {
	if c.Key == constants.SettingPinHash {
		return fmt.Errorf("use 'tally settings pin set' to change the PIN")
	}

	var value interface{} = c.Value
	var parsed interface{}
	if err := json.Unmarshal([]byte(c.Value), &parsed); err == nil {
		value = parsed
	}

	if strings.HasPrefix(c.Key, constants.SettingFeaturePrefix) {
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("feature flags take true or false")
		}
	}

	if err := ctx.Store.SetSetting(ctx.Ctx, c.Key, value); err != nil {
		return err
	}
	ctx.Printf("Set %s\n", c.Key)
	return nil
}

type SettingsUnsetCmd struct {
	Key string `arg:"" help:"Setting key."`
}

func (c *SettingsUnsetCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.DeleteSetting(ctx.Ctx, c.Key); err != nil {
		return err
	}
	ctx.Printf("Removed %s\n", c.Key)
	return nil
}

type PinCmd struct {
	Set   PinSetCmd   `cmd:"" help:"Set or change the PIN."`
	Clear PinClearCmd `cmd:"" help:"Remove the PIN."`
}

type PinSetCmd struct{}

func (c *PinSetCmd) Run(ctx *cli.Context) error {
	if err := tui.Unlock(ctx.Ctx, ctx.Store); err != nil {
		return err
	}
	pin, err := tui.PromptNewPIN()
	if err != nil {
		return err
	}
	hash, err := tui.HashPIN(pin)
	if err != nil {
		return err
	}
	if err := ctx.Store.SetSetting(ctx.Ctx, constants.SettingPinHash, hash); err != nil {
		return err
	}
	ctx.Println("✓ PIN set")
	return nil
}

type PinClearCmd struct{}

func (c *PinClearCmd) Run(ctx *cli.Context) error {
	if err := tui.Unlock(ctx.Ctx, ctx.Store); err != nil {
		return err
	}
	if err := ctx.Store.DeleteSetting(ctx.Ctx, constants.SettingPinHash); err != nil {
		return err
	}
	ctx.Println("✓ PIN removed")
	return nil
}
