package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rotisserie/eris"

	"github.com/tradu/emailqc/internal/model"
)

// deterministicID derives a stable row id from the rule's identity so
// re-seeding is idempotent across environments.
func deterministicID(prefix string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(prefix))
	for _, part := range parts {
		h.Write([]byte("::" + part))
	}
	return prefix + "_" + hex.EncodeToString(h.Sum(nil))[:24]
}

// seedDisclaimerRules is the baseline disclaimer set per entity/silo.
var seedDisclaimerRules = []model.DisclaimerRule{
	{Entity: "UK", Silo: "", EmailType: "marketing", Kind: "uk-risk_full", Text: "CFDs are complex instruments and come with a high risk of losing money rapidly due to leverage. 62% of retail investor accounts lose money when trading CFDs with this provider. You should consider whether you understand how CFDs work and whether you can afford to take the high risk of losing your money. Your capital is at risk.", Active: true},
	{Entity: "UK", Silo: "", EmailType: "marketing", Kind: "uk-risk_short", Text: "62% of retail CFD accounts lose money.", Active: true},
	{Entity: "UK", Silo: "Spread Bet", EmailType: "marketing", Kind: "uk-risk_spread_bet", Text: "Spread bets are complex instruments and come with a high risk of losing money rapidly due to leverage. 62% of retail investor accounts lose money when trading spread bets with this provider. You should consider whether you understand how spread bets work and whether you can afford to take the high risk of losing your money. Your capital is at risk.", Active: true},
	{Entity: "UK", Silo: "CFD", EmailType: "marketing", Kind: "uk-risk_cfd", Text: "CFDs are complex instruments and come with a high risk of losing money rapidly due to leverage. 62% of retail investor accounts lose money when trading CFDs with this provider. You should consider whether you understand how CFDs work and whether you can afford to take the high risk of losing your money. Your capital is at risk.", Active: true},
	{Entity: "EU", Silo: "", EmailType: "marketing", Kind: "eu-risk_full", Text: "CFDs are complex instruments and come with a high risk of losing money rapidly due to leverage. 65% of retail investor accounts lose money when trading CFDs with this provider. You should consider whether you understand how CFDs work and whether you can afford to take the high risk of losing your money. Your capital is at risk.", Active: true},
	{Entity: "EU", Silo: "", EmailType: "marketing", Kind: "eu-risk_short", Text: "65% of retail CFD accounts lose money.", Active: true},
	{Entity: "EU CY", Silo: "", EmailType: "marketing", Kind: "eu-cy-risk", Text: "CFDs are complex instruments and come with a high risk of losing money rapidly due to leverage. 65% of retail investor accounts lose money when trading CFDs with this provider. You should consider whether you understand how CFDs work and whether you can afford to take the high risk of losing your money. Your capital is at risk.", Active: true},
	{Entity: "EU CY", Silo: "", EmailType: "marketing", Kind: "eu-cy-risk_short", Text: "65% of retail CFD accounts lose money.", Active: true},
	{Entity: "ROW", Silo: "", EmailType: "marketing", Kind: "row-risk", Text: "The value of your investment can fluctuate. Losses can exceed deposits.", Active: true},
}

// seedKeywordRules pair trigger keywords with the disclaimer text they demand.
var seedKeywordRules = []model.KeywordRule{
	{Keyword: "crypto", RequiredText: "Cryptocurrency is not regulated in the UK and is not subject to investor protection schemes.", Active: true},
	{Keyword: "leverage", RequiredText: "Leverage can work against you as well as for you.", Active: true},
	{Keyword: "past performance", RequiredText: "Past performance is not a reliable indicator of future results.", Active: true},
}

func (s *SQLiteStore) Seed(ctx context.Context) error {
	for _, rule := range seedDisclaimerRules {
		id := deterministicID("disc", rule.Entity, rule.Silo, rule.Kind)
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO disclaimer_rules (id, entity, silo, email_type, kind, text, active) VALUES (?, ?, ?, ?, ?, ?, 1)`,
			id, rule.Entity, nullIfEmpty(rule.Silo), rule.EmailType, rule.Kind, rule.Text,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: seed disclaimer rule")
		}
	}
	for _, rule := range seedKeywordRules {
		id := deterministicID("kw", rule.Keyword)
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO keyword_rules (id, keyword, required_text, active) VALUES (?, ?, ?, 1)`,
			id, rule.Keyword, rule.RequiredText,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: seed keyword rule")
		}
	}
	return nil
}
