package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/importer"
	"github.com/codyseavey/tcg-inventory/internal/metrics"
)

// LookupQuery identifies a card to look up. SetCode and CollectorNumber are optional.
type LookupQuery struct {
	Name            string
	SetCode         string
	CollectorNumber string
}

// CardMetadata is the normalized result of a lookup. A failed lookup returns the zero
// value, with Found false.
type CardMetadata struct {
	Found           bool    `json:"found"`
	Name            string  `json:"name"`
	SetName         string  `json:"set_name"`
	SetCode         string  `json:"set_code"`
	CollectorNumber string  `json:"collector_number"`
	PriceUSD        float64 `json:"price_usd"`
	PriceFoilUSD    float64 `json:"price_foil_usd"`
	Rarity          string  `json:"rarity"`
	Colors          string  `json:"colors"`
	ColorIdentity   string  `json:"color_identity"`
	ManaCost        string  `json:"mana_cost"`
	ManaValue       float64 `json:"mana_value"`
	TypeLine        string  `json:"type_line"`
	ImageURL        string  `json:"image_url"`
	ImageURLBack    string  `json:"image_url_back"`
	MarketURL       string  `json:"market_url"`
}

// PriceFor picks the foil or non-foil market price
func (m CardMetadata) PriceFor(foil bool) float64 {
	if foil {
		return m.PriceFoilUSD
	}
	return m.PriceUSD
}

// MetadataFetcher looks up card metadata. Implementations never fail; a miss is a zero result.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, q LookupQuery) CardMetadata
}

type ScryfallService struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	cache   *expirable.LRU[string, CardMetadata]
	log     logrus.FieldLogger
}

func NewScryfallService(cfg config.ScryfallConfig, log logrus.FieldLogger) *ScryfallService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.scryfall.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 5000
	}
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	return &ScryfallService{
		client: &http.Client{
			Timeout: timeout + time.Second,
		},
		baseURL: baseURL,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		cache:   expirable.NewLRU[string, CardMetadata](cacheSize, nil, cfg.CacheTTL),
		log:     log,
	}
}

type scryfallSearchResponse struct {
	Data       []scryfallCard `json:"data"`
	Object     string         `json:"object"`
	TotalCards int            `json:"total_cards"`
	HasMore    bool           `json:"has_more"`
}

type scryfallCard struct {
	ImageURIs    *scryfallImages   `json:"image_uris"`
	CardFaces    []scryfallFace    `json:"card_faces"`
	Prices       scryfallPrices    `json:"prices"`
	PurchaseURIs map[string]string `json:"purchase_uris"`
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	SetName      string            `json:"set_name"`
	Set          string            `json:"set"`
	CollectorNum string            `json:"collector_number"`
	Rarity       string            `json:"rarity"`
	ManaCost     string            `json:"mana_cost"`
	TypeLine     string            `json:"type_line"`
	Colors       []string          `json:"colors"`
	ScryfallURI  string            `json:"scryfall_uri"`
}

type scryfallImages struct {
	Small  string `json:"small"`
	Normal string `json:"normal"`
	Large  string `json:"large"`
}

type scryfallFace struct {
	ImageURIs *scryfallImages `json:"image_uris"`
	Name      string          `json:"name"`
	ManaCost  string          `json:"mana_cost"`
	TypeLine  string          `json:"type_line"`
	Colors    []string        `json:"colors"`
}

type scryfallPrices struct {
	USD       string `json:"usd"`
	USDFoil   string `json:"usd_foil"`
	USDEtched string `json:"usd_etched"`
}

// FetchMetadata resolves q to card metadata. An exact print lookup is tried first when
// both set code and collector number are given, and only accepted when the returned
// name matches; otherwise a fuzzy name search is used, scoped to the set when one is
// given and retried unscoped if that misses. Errors are logged and yield a zero result.
func (s *ScryfallService) FetchMetadata(ctx context.Context, q LookupQuery) CardMetadata {
	q.Name = strings.TrimSpace(q.Name)
	q.SetCode = strings.TrimSpace(q.SetCode)
	q.CollectorNumber = strings.TrimSpace(q.CollectorNumber)
	if q.Name == "" {
		return CardMetadata{}
	}

	key := cacheKey(q)
	if meta, ok := s.cache.Get(key); ok {
		metrics.LookupCacheHits.Inc()
		return meta
	}
	metrics.LookupCacheMisses.Inc()

	log := s.log.WithFields(logrus.Fields{"card": q.Name, "set": q.SetCode, "number": q.CollectorNumber})

	if q.SetCode != "" && q.CollectorNumber != "" {
		card, err := s.getCardBySetAndNumber(ctx, q.SetCode, q.CollectorNumber)
		switch {
		case err != nil:
			metrics.ScryfallRequestsTotal.WithLabelValues("exact", "error").Inc()
			log.Warnf("Scryfall: exact lookup failed: %v", err)
		case card == nil:
			metrics.ScryfallRequestsTotal.WithLabelValues("exact", "not_found").Inc()
		case NamesMatch(q.Name, card.Name):
			metrics.ScryfallRequestsTotal.WithLabelValues("exact", "found").Inc()
			meta := convertToMetadata(*card)
			s.cache.Add(key, meta)
			return meta
		default:
			metrics.ScryfallRequestsTotal.WithLabelValues("exact", "mismatch").Inc()
			log.Warnf("Scryfall: exact lookup returned %q, falling back to name search", card.Name)
		}
	}

	scopes := []string{q.SetCode}
	if q.SetCode != "" {
		scopes = append(scopes, "")
	}
	for _, set := range scopes {
		card, err := s.getCardByName(ctx, q.Name, set)
		if err != nil {
			metrics.ScryfallRequestsTotal.WithLabelValues("fuzzy", "error").Inc()
			log.Warnf("Scryfall: name search failed: %v", err)
			if ctx.Err() != nil {
				return CardMetadata{}
			}
			continue
		}
		if card == nil {
			metrics.ScryfallRequestsTotal.WithLabelValues("fuzzy", "not_found").Inc()
			continue
		}
		metrics.ScryfallRequestsTotal.WithLabelValues("fuzzy", "found").Inc()
		meta := convertToMetadata(*card)
		s.cache.Add(key, meta)
		return meta
	}

	log.Info("Scryfall: no match found")
	return CardMetadata{}
}

func cacheKey(q LookupQuery) string {
	return strings.ToLower(q.Name) + "|" + strings.ToLower(q.SetCode) + "|" + strings.ToLower(q.CollectorNumber)
}

// SearchCards runs a Scryfall full-text search, preferring exact name matches
func (s *ScryfallService) SearchCards(ctx context.Context, query string) ([]CardMetadata, error) {
	safe := strings.ReplaceAll(strings.TrimSpace(query), "\"", "\\\"")
	q := fmt.Sprintf(`!"%s" OR "%s"`, safe, safe)
	reqURL := fmt.Sprintf("%s/cards/search?q=%s", s.baseURL, url.QueryEscape(q))

	var searchResp scryfallSearchResponse
	found, err := s.getJSON(ctx, "search", reqURL, &searchResp)
	if err != nil {
		return nil, fmt.Errorf("failed to search scryfall: %w", err)
	}
	results := []CardMetadata{}
	if !found {
		return results, nil
	}
	for _, sc := range searchResp.Data {
		results = append(results, convertToMetadata(sc))
	}
	return results, nil
}

// getCardBySetAndNumber uses Scryfall's exact lookup: GET /cards/:set/:number
// Returns nil, nil if the card is not found (404)
func (s *ScryfallService) getCardBySetAndNumber(ctx context.Context, setCode, number string) (*scryfallCard, error) {
	// Scryfall expects path params, so we must PathEscape.
	setEscaped := url.PathEscape(strings.ToLower(setCode))
	numberEscaped := url.PathEscape(number)
	reqURL := fmt.Sprintf("%s/cards/%s/%s", s.baseURL, setEscaped, numberEscaped)

	var sc scryfallCard
	found, err := s.getJSON(ctx, "exact", reqURL, &sc)
	if err != nil || !found {
		return nil, err
	}
	return &sc, nil
}

// getCardByName uses Scryfall's fuzzy named lookup, optionally scoped to a set
// Returns nil, nil if the card is not found (404)
func (s *ScryfallService) getCardByName(ctx context.Context, name, setCode string) (*scryfallCard, error) {
	params := url.Values{}
	params.Set("fuzzy", name)
	params.Set("format", "json")
	if setCode != "" {
		params.Set("set", strings.ToLower(setCode))
	}
	reqURL := fmt.Sprintf("%s/cards/named?%s", s.baseURL, params.Encode())

	var sc scryfallCard
	found, err := s.getJSON(ctx, "fuzzy", reqURL, &sc)
	if err != nil || !found {
		return nil, err
	}
	return &sc, nil
}

// getJSON waits for the rate limiter, issues the request and decodes a 200 response
// into dest. A 404 reports found=false without an error.
func (s *ScryfallService) getJSON(ctx context.Context, endpoint, reqURL string, dest interface{}) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tcg-inventory/1.0")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ScryfallLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to reach scryfall: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("scryfall API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("failed to decode scryfall response: %w", err)
	}
	return true, nil
}

// convertToMetadata reads top-level fields first and falls back to the first face for
// multi-faced cards. The second face supplies the back image.
func convertToMetadata(sc scryfallCard) CardMetadata {
	var imageURL, imageURLBack string
	if sc.ImageURIs != nil {
		imageURL = sc.ImageURIs.Normal
	}
	if len(sc.CardFaces) > 0 {
		if imageURL == "" && sc.CardFaces[0].ImageURIs != nil {
			imageURL = sc.CardFaces[0].ImageURIs.Normal
		}
		if len(sc.CardFaces) > 1 && sc.CardFaces[1].ImageURIs != nil {
			imageURLBack = sc.CardFaces[1].ImageURIs.Normal
		}
	}

	manaCost := sc.ManaCost
	typeLine := sc.TypeLine
	colors := sc.Colors
	if len(sc.CardFaces) > 0 {
		face := sc.CardFaces[0]
		if manaCost == "" {
			manaCost = face.ManaCost
		}
		if typeLine == "" {
			typeLine = face.TypeLine
		}
		if colors == nil {
			colors = face.Colors
		}
	}

	priceUSD := parsePrice(sc.Prices.USD)
	priceFoilUSD := parsePrice(sc.Prices.USDFoil)
	if priceFoilUSD == 0 {
		priceFoilUSD = parsePrice(sc.Prices.USDEtched)
	}

	marketURL := sc.PurchaseURIs["tcgplayer"]
	if marketURL == "" {
		marketURL = sc.ScryfallURI
	}

	return CardMetadata{
		Found:           true,
		Name:            sc.Name,
		SetName:         sc.SetName,
		SetCode:         sc.Set,
		CollectorNumber: sc.CollectorNum,
		PriceUSD:        priceUSD,
		PriceFoilUSD:    priceFoilUSD,
		Rarity:          importer.TitleCase(sc.Rarity),
		Colors:          ColorCategory(colors),
		ColorIdentity:   ColorIdentity(colors),
		ManaCost:        FormatManaCost(manaCost),
		ManaValue:       ManaValue(manaCost),
		TypeLine:        typeLine,
		ImageURL:        imageURL,
		ImageURLBack:    imageURLBack,
		MarketURL:       marketURL,
	}
}

func parsePrice(s string) float64 {
	var price float64
	if s != "" {
		_, _ = fmt.Sscanf(s, "%f", &price)
	}
	return price
}
