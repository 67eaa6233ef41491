package rates

import (
	"fmt"

	"github.com/pymeadmin/backend/internal/domain/retention"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// bracketFile is the TOML shape of one scale bracket. Amounts are
// strings so they pass through decimal parsing without float noise.
type bracketFile struct {
	Lower string `mapstructure:"lower"`
	Upper string `mapstructure:"upper"` // empty on the last bracket
	Fixed string `mapstructure:"fixed"`
	Rate  string `mapstructure:"rate"`
}

type categoryFile struct {
	Code             string `mapstructure:"code"`
	Description      string `mapstructure:"description"`
	RegisteredRate   string `mapstructure:"registered_rate"` // empty = no withholding when registered
	UnregisteredRate string `mapstructure:"unregistered_rate"`
	ExemptThreshold  string `mapstructure:"exempt_threshold"`
	UsesScale        bool   `mapstructure:"uses_scale"`
}

type tableFile struct {
	Scale      []bracketFile  `mapstructure:"scale"`
	Categories []categoryFile `mapstructure:"categories"`
}

// Load returns the rate table for the engine. With an empty path the
// built-in RG 830 table is used; otherwise the TOML file at path must
// parse and validate, a broken file is a startup error rather than a
// silent fallback.
func Load(path string, logger *zap.Logger) (retention.Table, error) {
	if path == "" {
		logger.Info("using built-in withholding rate table")
		return retention.DefaultTable(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return retention.Table{}, fmt.Errorf("reading rate table %s: %w", path, err)
	}

	var file tableFile
	if err := v.Unmarshal(&file); err != nil {
		return retention.Table{}, fmt.Errorf("parsing rate table %s: %w", path, err)
	}

	table, err := file.toDomain()
	if err != nil {
		return retention.Table{}, fmt.Errorf("rate table %s: %w", path, err)
	}
	if err := table.Validate(); err != nil {
		return retention.Table{}, fmt.Errorf("rate table %s: %w", path, err)
	}

	logger.Info("loaded withholding rate table",
		zap.String("path", path),
		zap.Int("brackets", len(table.Scale)),
		zap.Int("categories", len(table.Categories)),
	)
	return table, nil
}

func (f tableFile) toDomain() (retention.Table, error) {
	table := retention.Table{
		Scale:      make(retention.Scale, 0, len(f.Scale)),
		Categories: make(map[string]retention.CategoryRule, len(f.Categories)),
	}

	for i, b := range f.Scale {
		bracket := retention.Bracket{}
		var err error
		if bracket.Lower, err = parseAmount(b.Lower, "lower"); err != nil {
			return retention.Table{}, fmt.Errorf("scale bracket %d: %w", i, err)
		}
		if b.Upper != "" {
			upper, err := parseAmount(b.Upper, "upper")
			if err != nil {
				return retention.Table{}, fmt.Errorf("scale bracket %d: %w", i, err)
			}
			bracket.Upper = &upper
		}
		if bracket.Fixed, err = parseAmount(b.Fixed, "fixed"); err != nil {
			return retention.Table{}, fmt.Errorf("scale bracket %d: %w", i, err)
		}
		if bracket.Rate, err = parseAmount(b.Rate, "rate"); err != nil {
			return retention.Table{}, fmt.Errorf("scale bracket %d: %w", i, err)
		}
		table.Scale = append(table.Scale, bracket)
	}

	for _, c := range f.Categories {
		rule := retention.CategoryRule{
			Code:        c.Code,
			Description: c.Description,
			UsesScale:   c.UsesScale,
		}
		var err error
		if rule.UnregisteredRate, err = parseAmount(c.UnregisteredRate, "unregistered_rate"); err != nil {
			return retention.Table{}, fmt.Errorf("category %s: %w", c.Code, err)
		}
		if rule.ExemptThreshold, err = parseAmount(c.ExemptThreshold, "exempt_threshold"); err != nil {
			return retention.Table{}, fmt.Errorf("category %s: %w", c.Code, err)
		}
		if c.RegisteredRate != "" {
			rate, err := parseAmount(c.RegisteredRate, "registered_rate")
			if err != nil {
				return retention.Table{}, fmt.Errorf("category %s: %w", c.Code, err)
			}
			rule.RegisteredRate = &rate
		}
		table.Categories[c.Code] = rule
	}

	return table, nil
}

func parseAmount(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", field)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
