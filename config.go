package kouhai

import (
	"errors"
	"fmt"

	"git.sr.ht/~emersion/go-scfg"

	"git.sr.ht/~delthas/kouhai/irc"
)

// Config carries the engine parameters of one connection. Callers
// embedding the engine may fill it directly; LoadConfigFile reads it
// from an scfg file.
type Config struct {
	Nick     string
	User     string
	Real     string
	Password string

	CaseMapping string
	Caps        []string
}

// SessionParams converts the config for irc.NewSession.
func (cfg Config) SessionParams() irc.SessionParams {
	return irc.SessionParams{
		Nickname:    cfg.Nick,
		Username:    cfg.User,
		RealName:    cfg.Real,
		Password:    cfg.Password,
		WantedCaps:  cfg.Caps,
		CaseMapping: cfg.CaseMapping,
	}
}

func LoadConfigFile(filename string) (cfg Config, err error) {
	err = unmarshal(filename, &cfg)
	if err != nil {
		return cfg, err
	}
	if cfg.Nick == "" {
		return cfg, errors.New("nickname is required")
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Real == "" {
		cfg.Real = cfg.Nick
	}
	if cfg.CaseMapping != "" {
		if _, ok := irc.CaseMappingByName(cfg.CaseMapping); !ok {
			return cfg, fmt.Errorf("unknown casemapping %q", cfg.CaseMapping)
		}
	}
	return cfg, nil
}

func unmarshal(filename string, cfg *Config) (err error) {
	directives, err := scfg.Load(filename)
	if err != nil {
		return fmt.Errorf("error parsing scfg: %s", err)
	}

	for _, d := range directives {
		switch d.Name {
		case "nickname":
			if err := d.ParseParams(&cfg.Nick); err != nil {
				return err
			}
		case "username":
			if err := d.ParseParams(&cfg.User); err != nil {
				return err
			}
		case "realname":
			if err := d.ParseParams(&cfg.Real); err != nil {
				return err
			}
		case "password":
			if err := d.ParseParams(&cfg.Password); err != nil {
				return err
			}
		case "casemapping":
			if err := d.ParseParams(&cfg.CaseMapping); err != nil {
				return err
			}
		case "cap":
			cfg.Caps = append(cfg.Caps, d.Params...)
		default:
			return fmt.Errorf("unknown directive %q", d.Name)
		}
	}

	return nil
}
