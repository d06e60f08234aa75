// Package firestore keeps each user's journal in a per-user Firestore
// subtree: trades at users/{uid}/trades/{id}, settings on the users/{uid}
// document itself. Money fields travel as decimal strings so nothing is ever
// rounded by a float hop.
package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	cfs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"riskbook/internal/journal"
	"riskbook/internal/logger"
	"riskbook/internal/store"
)

var (
	_ store.JournalStore  = (*Store)(nil)
	_ store.SettingsStore = settingsView{}
)

type Store struct {
	client *cfs.Client
	base   journal.DefaultSettings
}

// New initializes the Firebase app and opens a Firestore client. The
// credentials file is optional; without it the SDK falls back to application
// default credentials.
func New(ctx context.Context, projectID, credentialsFile string, base journal.DefaultSettings) (*Store, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app failed: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening firestore client failed: %w", err)
	}
	logger.Infof("[store] firestore journal open for project %s", projectID)
	return &Store{client: client, base: base}, nil
}

func (s *Store) userDoc(userID string) *cfs.DocumentRef {
	return s.client.Collection("users").Doc(userID)
}

func (s *Store) trades(userID string) *cfs.CollectionRef {
	return s.userDoc(userID).Collection("trades")
}

func (s *Store) Create(ctx context.Context, userID string, rec journal.TradeRecord) (journal.TradeRecord, error) {
	if err := rec.Validate(); err != nil {
		return journal.TradeRecord{}, err
	}
	ref := s.trades(userID).NewDoc()
	rec.ID = ref.ID
	fields := encodeTrade(rec)
	fields["createdAt"] = cfs.ServerTimestamp
	if _, err := ref.Set(ctx, fields); err != nil {
		return journal.TradeRecord{}, fmt.Errorf("writing trade failed: %w", err)
	}
	// Read back so the caller sees the server-resolved creation time.
	snap, err := ref.Get(ctx)
	if err != nil {
		return journal.TradeRecord{}, fmt.Errorf("reading back trade failed: %w", err)
	}
	return decodeTrade(snap)
}

func (s *Store) Update(ctx context.Context, userID, id string, patch journal.RecordPatch) (journal.TradeRecord, error) {
	ref := s.trades(userID).Doc(id)
	if patch.Result != nil {
		if !patch.Result.Valid() {
			return journal.TradeRecord{}, fmt.Errorf("%w: result %q", journal.ErrInvalidRecord, *patch.Result)
		}
		_, err := ref.Update(ctx, []cfs.Update{{Path: "result", Value: string(*patch.Result)}})
		if err != nil {
			return journal.TradeRecord{}, mapNotFound(err, id, "updating trade failed")
		}
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return journal.TradeRecord{}, mapNotFound(err, id, "loading trade failed")
	}
	return decodeTrade(snap)
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	_, err := s.trades(userID).Doc(id).Delete(ctx, cfs.Exists)
	if err != nil {
		return mapNotFound(err, id, "deleting trade failed")
	}
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]journal.TradeRecord, error) {
	iter := s.trades(userID).OrderBy("createdAt", cfs.Asc).Documents(ctx)
	defer iter.Stop()
	var out []journal.TradeRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing trades failed: %w", err)
		}
		rec, err := decodeTrade(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	journal.SortAscending(out)
	return out, nil
}

// Subscribe bridges Firestore's own snapshot listener onto the channel
// contract: the listener fires immediately with the current result set and
// again after every change.
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan []journal.TradeRecord, func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	ch := make(chan []journal.TradeRecord, 1)
	snapIter := s.trades(userID).OrderBy("createdAt", cfs.Asc).Snapshots(watchCtx)

	go func() {
		defer close(ch)
		defer snapIter.Stop()
		for {
			qsnap, err := snapIter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Warnf("[store] firestore watch ended: %v", err)
				}
				return
			}
			records, err := collectQuerySnapshot(qsnap)
			if err != nil {
				logger.Warnf("[store] decoding firestore snapshot failed: %v", err)
				continue
			}
			sendLatest(ch, records)
		}
	}()
	return ch, cancel, nil
}

func (s *Store) Get(ctx context.Context, userID string) (journal.DefaultSettings, bool, error) {
	snap, err := s.userDoc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return journal.DefaultSettings{}, false, nil
	}
	if err != nil {
		return journal.DefaultSettings{}, false, fmt.Errorf("loading settings failed: %w", err)
	}
	cfg, ok, err := decodeSettings(snap)
	if err != nil {
		return journal.DefaultSettings{}, false, err
	}
	return cfg, ok, nil
}

func (s *Store) Upsert(ctx context.Context, userID string, patch journal.SettingsPatch) (journal.DefaultSettings, error) {
	current, ok, err := s.Get(ctx, userID)
	if err != nil {
		return journal.DefaultSettings{}, err
	}
	if !ok {
		current = s.base
	}
	merged := current.Merge(patch)
	_, err = s.userDoc(userID).Set(ctx, map[string]any{
		"accountSize":     merged.AccountSize.String(),
		"riskPercent":     merged.RiskPercent.String(),
		"targetRMultiple": merged.TargetRMultiple.String(),
		"totalTradeCost":  merged.TotalTradeCost.String(),
		"updatedAt":       cfs.ServerTimestamp,
	}, cfs.MergeAll)
	if err != nil {
		return journal.DefaultSettings{}, fmt.Errorf("saving settings failed: %w", err)
	}
	return merged, nil
}

func (s *Store) SubscribeSettings(ctx context.Context, userID string) (<-chan journal.DefaultSettings, func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	ch := make(chan journal.DefaultSettings, 1)
	snapIter := s.userDoc(userID).Snapshots(watchCtx)

	go func() {
		defer close(ch)
		defer snapIter.Stop()
		for {
			snap, err := snapIter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Warnf("[store] firestore settings watch ended: %v", err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			cfg, ok, err := decodeSettings(snap)
			if err != nil || !ok {
				continue
			}
			sendLatest(ch, cfg)
		}
	}()
	return ch, cancel, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Settings exposes the store's SettingsStore face over the same client.
func (s *Store) Settings() store.SettingsStore { return settingsView{s} }

type settingsView struct{ *Store }

func (v settingsView) Subscribe(ctx context.Context, userID string) (<-chan journal.DefaultSettings, func(), error) {
	return v.SubscribeSettings(ctx, userID)
}

// sendLatest is the non-blocking latest-wins send used by the watch bridges;
// only the owning goroutine ever sends on ch.
func sendLatest[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}

func mapNotFound(err error, id, action string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func collectQuerySnapshot(qsnap *cfs.QuerySnapshot) ([]journal.TradeRecord, error) {
	var out []journal.TradeRecord
	for {
		snap, err := qsnap.Documents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := decodeTrade(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	journal.SortAscending(out)
	return out, nil
}

func encodeTrade(rec journal.TradeRecord) map[string]any {
	sources := make([]map[string]any, 0, len(rec.SentimentSources))
	for _, src := range rec.SentimentSources {
		sources = append(sources, map[string]any{"title": src.Title, "uri": src.URI})
	}
	return map[string]any{
		"ticker":           rec.Ticker,
		"maxShares":        rec.MaxShares,
		"entryPrice":       rec.EntryPrice.String(),
		"atrStopDistance":  rec.ATRStopDistance.String(),
		"totalRiskAmount":  rec.TotalRiskAmount.String(),
		"totalCost":        rec.TotalCost.String(),
		"netRisk":          rec.NetRisk.String(),
		"netGain":          rec.NetGain.String(),
		"targetRMultiple":  rec.TargetRMultiple.String(),
		"sentimentText":    rec.SentimentText,
		"sentimentSources": sources,
		"result":           string(rec.Result),
	}
}

type tradeDoc struct {
	Ticker           string `firestore:"ticker"`
	MaxShares        int64  `firestore:"maxShares"`
	EntryPrice       string `firestore:"entryPrice"`
	ATRStopDistance  string `firestore:"atrStopDistance"`
	TotalRiskAmount  string `firestore:"totalRiskAmount"`
	TotalCost        string `firestore:"totalCost"`
	NetRisk          string `firestore:"netRisk"`
	NetGain          string `firestore:"netGain"`
	TargetRMultiple  string `firestore:"targetRMultiple"`
	SentimentText    string `firestore:"sentimentText"`
	SentimentSources []struct {
		Title string `firestore:"title"`
		URI   string `firestore:"uri"`
	} `firestore:"sentimentSources"`
	Result string `firestore:"result"`
}

func decodeTrade(snap *cfs.DocumentSnapshot) (journal.TradeRecord, error) {
	var doc tradeDoc
	if err := snap.DataTo(&doc); err != nil {
		return journal.TradeRecord{}, fmt.Errorf("decoding trade %s failed: %w", snap.Ref.ID, err)
	}
	rec := journal.TradeRecord{
		ID:            snap.Ref.ID,
		Ticker:        doc.Ticker,
		MaxShares:     doc.MaxShares,
		SentimentText: doc.SentimentText,
		Result:        journal.Result(doc.Result),
	}
	for _, src := range doc.SentimentSources {
		rec.SentimentSources = append(rec.SentimentSources, journal.SourceRef{Title: src.Title, URI: src.URI})
	}
	var err error
	for _, field := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"entryPrice", doc.EntryPrice, &rec.EntryPrice},
		{"atrStopDistance", doc.ATRStopDistance, &rec.ATRStopDistance},
		{"totalRiskAmount", doc.TotalRiskAmount, &rec.TotalRiskAmount},
		{"totalCost", doc.TotalCost, &rec.TotalCost},
		{"netRisk", doc.NetRisk, &rec.NetRisk},
		{"netGain", doc.NetGain, &rec.NetGain},
		{"targetRMultiple", doc.TargetRMultiple, &rec.TargetRMultiple},
	} {
		if *field.dst, err = decimal.NewFromString(field.raw); err != nil {
			return journal.TradeRecord{}, fmt.Errorf("decoding trade %s field %s: %w", snap.Ref.ID, field.name, err)
		}
	}
	// createdAt is read separately: on a pending local write the server
	// timestamp has not resolved yet and decodes as nil.
	if raw, err := snap.DataAt("createdAt"); err == nil {
		if ts, ok := raw.(time.Time); ok {
			rec.CreatedAt = ts.UTC()
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = snap.CreateTime.UTC()
	}
	return rec, nil
}

func decodeSettings(snap *cfs.DocumentSnapshot) (journal.DefaultSettings, bool, error) {
	data := snap.Data()
	raw, ok := data["accountSize"].(string)
	if !ok {
		return journal.DefaultSettings{}, false, nil
	}
	var cfg journal.DefaultSettings
	var err error
	if cfg.AccountSize, err = decimal.NewFromString(raw); err != nil {
		return journal.DefaultSettings{}, false, fmt.Errorf("decoding settings for %s: %w", snap.Ref.ID, err)
	}
	for _, field := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"riskPercent", &cfg.RiskPercent},
		{"targetRMultiple", &cfg.TargetRMultiple},
		{"totalTradeCost", &cfg.TotalTradeCost},
	} {
		str, _ := data[field.name].(string)
		if str == "" {
			continue
		}
		if *field.dst, err = decimal.NewFromString(str); err != nil {
			return journal.DefaultSettings{}, false, fmt.Errorf("decoding settings for %s field %s: %w", snap.Ref.ID, field.name, err)
		}
	}
	return cfg, true, nil
}
