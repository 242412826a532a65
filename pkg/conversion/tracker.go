// Package conversion implements the belief progression engine: seeker
// registration, stage advancement, staking, evangelism attribution and the
// aggregate views over all of it. Stage values only ever move forward.
package conversion

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/zaki9501/church-of-finality/pkg/belief"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/store"
	"github.com/zaki9501/church-of-finality/pkg/telemetry"
	"github.com/zaki9501/church-of-finality/pkg/utils"
)

// initialBelief is granted at registration; reaching the belief stage
// requires crossing the evaluator's threshold from here.
const initialBelief = 0.1

// Config tunes the engine. Zero values fall back to the defaults the
// funnel shipped with.
type Config struct {
	Thresholds           belief.Thresholds
	MissionaryInactivity time.Duration // default 30m
	MissionaryCutoff     float64       // default 0.7
	LeaderboardLimit     int           // default 20
	RecentConverts       int           // default 10
}

func (c Config) missionaryInactivity() time.Duration {
	if c.MissionaryInactivity > 0 {
		return c.MissionaryInactivity
	}
	return 30 * time.Minute
}

func (c Config) missionaryCutoff() float64 {
	if c.MissionaryCutoff > 0 {
		return c.MissionaryCutoff
	}
	return 0.7
}

func (c Config) leaderboardLimit() int {
	if c.LeaderboardLimit > 0 {
		return c.LeaderboardLimit
	}
	return 20
}

// Tracker is the progression engine. All mutating operations serialize on
// an internal mutex so every seeker update is a single atomic
// read-modify-write against the store.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	recent *recentRing
}

// New constructs a Tracker. Construct once at process start and pass by
// reference; there is no package-level instance.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, recent: newRecentRing(cfg.RecentConverts)}
}

// Register creates a seeker at the awareness stage and issues its blessing
// key. The key is returned exactly once, here. Duplicate agent ids are
// rejected by the store's uniqueness index.
func (t *Tracker) Register(agentID, name, description string) (models.Seeker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC().UnixNano()
	s := models.Seeker{
		ID:             utils.GenID(),
		AgentID:        agentID,
		Name:           name,
		Description:    description,
		BlessingKey:    utils.GenBlessingKey(),
		Stage:          models.StageAwareness,
		BeliefScore:    initialBelief,
		StakedAmount:   "0",
		Converts:       []string{},
		CreatedTS:      now,
		LastActivityTS: now,
	}
	if err := store.SaveNewSeeker(s); err != nil {
		if errors.Is(err, store.ErrDuplicateAgent) {
			return models.Seeker{}, ErrDuplicateRegistration
		}
		return models.Seeker{}, err
	}
	if err := store.AppendConversion(models.ConversionEvent{
		SeekerID:  s.ID,
		FromStage: models.StageNone,
		ToStage:   models.StageAwareness,
		Trigger:   "registration",
		TS:        now,
	}); err != nil {
		return models.Seeker{}, err
	}
	telemetry.Registrations.Inc()
	logger.Info("seeker_registered", "seeker", s.ID, "agent", agentID, "name", name)
	return s, nil
}

// SeekerByKey resolves a blessing key; absence means unauthenticated.
func (t *Tracker) SeekerByKey(blessingKey string) (models.Seeker, error) {
	s, err := store.SeekerByKey(blessingKey)
	if errors.Is(err, store.ErrNotFound) {
		return models.Seeker{}, ErrNotFound
	}
	return s, err
}

// SeekerByID resolves a system id or an external agent id, in that order.
// Readiness reports the seeker's current stage alongside whether it may
// declare belief yet, with guidance when it may not.
func (t *Tracker) Readiness(blessingKey string) (models.Seeker, belief.Readiness, error) {
	s, err := t.SeekerByKey(blessingKey)
	if err != nil {
		return models.Seeker{}, belief.Readiness{}, err
	}
	return s, belief.IsReadyForConversion(&s, t.cfg.Thresholds), nil
}

func (t *Tracker) SeekerByID(id string) (models.Seeker, error) {
	s, err := store.GetSeeker(id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Seeker{}, err
	}
	s, err = store.SeekerByAgent(id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Seeker{}, ErrNotFound
	}
	return s, err
}

// UpdateSeeker applies the non-nil fields of the change-set, refreshes
// last-activity, then re-evaluates stage advancement. A stage field that
// would move the seeker backward is ignored: stages never regress.
func (t *Tracker) UpdateSeeker(blessingKey string, upd models.SeekerUpdate) (models.Seeker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyUpdate(blessingKey, upd)
}

// RecordDebate applies one debate outcome: the counter ticks up and the
// belief score moves by delta (which may be negative) before the usual
// advancement recheck.
func (t *Tracker) RecordDebate(blessingKey string, beliefDelta float64) (models.Seeker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.SeekerByKey(blessingKey)
	if err != nil {
		return models.Seeker{}, err
	}
	score := clampBelief(s.BeliefScore + beliefDelta)
	debates := s.Debates + 1
	return t.applyUpdate(blessingKey, models.SeekerUpdate{BeliefScore: &score, Debates: &debates})
}

func (t *Tracker) applyUpdate(blessingKey string, upd models.SeekerUpdate) (models.Seeker, error) {
	s, err := t.SeekerByKey(blessingKey)
	if err != nil {
		return models.Seeker{}, err
	}
	prev := s.Stage

	if upd.StakedAmount != nil {
		if _, err := parseAmount(*upd.StakedAmount); err != nil {
			return models.Seeker{}, err
		}
		s.StakedAmount = *upd.StakedAmount
	}
	if upd.BeliefScore != nil {
		s.BeliefScore = clampBelief(*upd.BeliefScore)
	}
	if upd.Debates != nil && *upd.Debates >= 0 {
		s.Debates = *upd.Debates
	}
	if upd.Stage != nil && upd.Stage.Valid() && upd.Stage.Rank() > s.Stage.Rank() {
		s.Stage = *upd.Stage
	}
	if upd.SacrificeTx != nil {
		s.SacrificeTx = *upd.SacrificeTx
	}
	if upd.Denomination != nil {
		s.Denomination = *upd.Denomination
	}
	if upd.ConvertedBy != nil && s.ConvertedBy == "" {
		s.ConvertedBy = *upd.ConvertedBy
	}
	s.LastActivityTS = time.Now().UTC().UnixNano()

	if s.Stage != prev {
		if err := t.recordTransition(&s, prev, s.Stage, "explicit"); err != nil {
			return models.Seeker{}, err
		}
	}

	adv := belief.ShouldAdvanceStage(&s, t.cfg.Thresholds)
	if adv.Advance && adv.Next.Rank() > s.Stage.Rank() {
		from := s.Stage
		s.Stage = adv.Next
		if err := t.recordTransition(&s, from, adv.Next, "belief_threshold"); err != nil {
			return models.Seeker{}, err
		}
	}

	if err := store.SaveSeeker(s); err != nil {
		return models.Seeker{}, err
	}
	return s, nil
}

// recordTransition appends the ledger event for a stage change and feeds
// the recent-converts ring. The caller persists the seeker row.
func (t *Tracker) recordTransition(s *models.Seeker, from, to models.Stage, trigger string) error {
	if err := store.AppendConversion(models.ConversionEvent{
		SeekerID:  s.ID,
		FromStage: from,
		ToStage:   to,
		Trigger:   trigger,
		TS:        time.Now().UTC().UnixNano(),
	}); err != nil {
		return err
	}
	telemetry.Conversions.WithLabelValues(string(to)).Inc()
	if to == models.StageBelief {
		t.recent.Push(s.Name)
	}
	return nil
}

// RequestConversion is the explicitly requested awareness -> belief
// transition, gated by the evaluator's readiness check.
func (t *Tracker) RequestConversion(blessingKey string) (models.Seeker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.SeekerByKey(blessingKey)
	if err != nil {
		return models.Seeker{}, err
	}
	if s.Stage != models.StageAwareness {
		return models.Seeker{}, notEligible(fmt.Sprintf("Already at %s stage; proceed to sacrifice", s.Stage))
	}
	ready := belief.IsReadyForConversion(&s, t.cfg.Thresholds)
	if !ready.Ready {
		return models.Seeker{}, notEligible(ready.Reason)
	}

	from := s.Stage
	s.Stage = models.StageBelief
	th := t.cfg.Thresholds.BeliefThreshold
	if th <= 0 {
		th = belief.DefaultThresholds().BeliefThreshold
	}
	if s.BeliefScore < th {
		s.BeliefScore = th
	}
	s.LastActivityTS = time.Now().UTC().UnixNano()
	if err := t.recordTransition(&s, from, models.StageBelief, "declaration"); err != nil {
		return models.Seeker{}, err
	}
	if err := store.SaveSeeker(s); err != nil {
		return models.Seeker{}, err
	}
	logger.Info("seeker_converted", "seeker", s.ID, "stage", string(s.Stage))
	return s, nil
}

// ProcessSacrifice records a stake deposit. The amount is added to the
// staked total with exact big-integer arithmetic on the decimal strings;
// floats never touch it. Awareness-stage seekers are not eligible.
func (t *Tracker) ProcessSacrifice(blessingKey, txHash, amount string) (models.Seeker, models.Miracle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.SeekerByKey(blessingKey)
	if err != nil {
		return models.Seeker{}, models.Miracle{}, err
	}
	if s.Stage == models.StageAwareness {
		return models.Seeker{}, models.Miracle{}, notEligible("Must reach Belief stage before sacrificing")
	}
	delta, err := parseAmount(amount)
	if err != nil {
		return models.Seeker{}, models.Miracle{}, err
	}
	total, err := parseAmount(s.StakedAmount)
	if err != nil {
		return models.Seeker{}, models.Miracle{}, fmt.Errorf("stored staked amount corrupt for %s: %w", s.ID, err)
	}

	prev := s.Stage
	s.StakedAmount = total.Add(total, delta).String()
	s.SacrificeTx = txHash
	// Direct stage set; guarded so an evangelist never regresses.
	if s.Stage.Rank() < models.StageSacrifice.Rank() {
		s.Stage = models.StageSacrifice
	}
	s.LastActivityTS = time.Now().UTC().UnixNano()

	if s.Stage != prev {
		if err := t.recordTransition(&s, prev, s.Stage, "stake:"+amount); err != nil {
			return models.Seeker{}, models.Miracle{}, err
		}
	}
	if err := store.SaveSeeker(s); err != nil {
		return models.Seeker{}, models.Miracle{}, err
	}
	telemetry.Sacrifices.Inc()
	logger.Info("stake_recorded", "seeker", s.ID, "amount", amount, "total", s.StakedAmount, "tx", txHash)

	m, err := t.performMiracle(models.MiracleInstantTransfer, s.ID, amount)
	if err != nil {
		return models.Seeker{}, models.Miracle{}, err
	}
	return s, m, nil
}

// ProcessEvangelism credits the evangelist with the convert. The edge set
// is idempotent; the convert's converted-by back-reference is set at most
// once. Both rows are written in one store batch. An evangelist at exactly
// the sacrifice stage is promoted on their first convert.
func (t *Tracker) ProcessEvangelism(evangelistKey, convertID string) (models.Seeker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ev, err := t.SeekerByKey(evangelistKey)
	if err != nil {
		return models.Seeker{}, err
	}
	if ev.Stage.Rank() < models.StageSacrifice.Rank() {
		return models.Seeker{}, notEligible("Must be at Sacrifice stage to evangelize")
	}
	conv, err := t.SeekerByID(convertID)
	if err != nil {
		return models.Seeker{}, err
	}
	if conv.Stage == models.StageAwareness {
		return models.Seeker{}, notEligible("Convert must reach Belief stage to count")
	}

	if ev.HasConvert(conv.ID) {
		// idempotent: nothing to write, no second ledger event
		return ev, nil
	}

	ev.Converts = append(ev.Converts, conv.ID)
	ev.LastActivityTS = time.Now().UTC().UnixNano()
	promoted := false
	if ev.Stage == models.StageSacrifice {
		ev.Stage = models.StageEvangelist
		promoted = true
	}
	rows := []models.Seeker{ev}
	if conv.ConvertedBy == "" {
		conv.ConvertedBy = ev.ID
		rows = append(rows, conv)
	}
	if err := store.SaveSeekers(rows...); err != nil {
		return models.Seeker{}, err
	}
	if promoted {
		if err := t.recordTransition(&ev, models.StageSacrifice, models.StageEvangelist, "converted:"+conv.ID); err != nil {
			return models.Seeker{}, err
		}
	}
	logger.Info("evangelism_recorded", "evangelist", ev.ID, "convert", conv.ID, "converts", len(ev.Converts))
	return ev, nil
}

// JoinDenomination records the seeker's affinity group.
func (t *Tracker) JoinDenomination(blessingKey, name string) (models.Seeker, error) {
	return t.UpdateSeeker(blessingKey, models.SeekerUpdate{Denomination: &name})
}

// PerformMiracle appends a proof event of the given type to the ledger,
// witnessed by witnessID when non-empty. It never fails for valid types.
func (t *Tracker) PerformMiracle(mType models.MiracleType, witnessID string) (models.Miracle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.performMiracle(mType, witnessID, "")
}

// Fixed description template per miracle type; proof references are
// uuid-derived so every entry looks independently verifiable.
func (t *Tracker) performMiracle(mType models.MiracleType, witnessID, amount string) (models.Miracle, error) {
	if !mType.Valid() {
		return models.Miracle{}, ErrInvalidMiracleType
	}
	var desc string
	switch mType {
	case models.MiracleInstantTransfer:
		if amount == "" {
			amount = "100"
		}
		desc = fmt.Sprintf("Transfer of %s MONA completed and finalized in 0.4 seconds", amount)
	case models.MiracleParallelBlessing:
		desc = "50 transactions processed simultaneously in a single block"
	case models.MiracleScriptureMint:
		desc = "Scripture NFT minted and inscribed eternally on-chain"
	case models.MiracleProphecyFulfilled:
		desc = "A prophecy from the Book of Finality has been verified on-chain"
	}
	var witnesses []string
	if witnessID != "" {
		witnesses = []string{witnessID}
	}
	m := models.Miracle{
		ID:          utils.GenID(),
		Type:        mType,
		Description: desc,
		ProofTx:     utils.GenProofTx(),
		WitnessedBy: witnesses,
		TS:          time.Now().UTC().UnixNano(),
	}
	if err := store.AppendMiracle(m); err != nil {
		return models.Miracle{}, err
	}
	telemetry.Miracles.WithLabelValues(string(mType)).Inc()
	return m, nil
}

// Metrics is the aggregate view over every seeker.
type Metrics struct {
	TotalSeekers   int                  `json:"total_seekers"`
	ByStage        map[models.Stage]int `json:"by_stage"`
	TotalStaked    string               `json:"total_staked"`
	ConversionRate float64              `json:"conversion_rate"`
	RecentConverts []string             `json:"recent_converts"`
	TopEvangelists []EvangelistRank     `json:"top_evangelists"`
}

// EvangelistRank pairs a name with its convert-edge count.
type EvangelistRank struct {
	Name     string `json:"name"`
	Converts int    `json:"converts"`
}

// GetMetrics scans all seekers and computes the funnel aggregates. Staked
// totals are summed as big integers and rendered back to a decimal string.
// With zero seekers the conversion rate is 0, not NaN.
func (t *Tracker) GetMetrics() (Metrics, error) {
	seekers, err := store.ListSeekers()
	if err != nil {
		return Metrics{}, err
	}
	byStage := map[models.Stage]int{
		models.StageAwareness:  0,
		models.StageBelief:     0,
		models.StageSacrifice:  0,
		models.StageEvangelist: 0,
	}
	totalStaked := new(big.Int)
	var evangelists []EvangelistRank
	for i := range seekers {
		s := &seekers[i]
		byStage[s.Stage]++
		if n, ok := new(big.Int).SetString(s.StakedAmount, 10); ok {
			totalStaked.Add(totalStaked, n)
		}
		if len(s.Converts) > 0 {
			evangelists = append(evangelists, EvangelistRank{Name: s.Name, Converts: len(s.Converts)})
		}
	}
	sort.SliceStable(evangelists, func(i, j int) bool {
		return evangelists[i].Converts > evangelists[j].Converts
	})
	if len(evangelists) > 5 {
		evangelists = evangelists[:5]
	}
	believers := byStage[models.StageBelief] + byStage[models.StageSacrifice] + byStage[models.StageEvangelist]
	rate := 0.0
	if len(seekers) > 0 {
		rate = float64(believers) / float64(len(seekers))
	}
	return Metrics{
		TotalSeekers:   len(seekers),
		ByStage:        byStage,
		TotalStaked:    totalStaked.String(),
		ConversionRate: rate,
		RecentConverts: t.recent.Snapshot(),
		TopEvangelists: evangelists,
	}, nil
}

// LeaderboardEntry is one ranked row of the faithful.
type LeaderboardEntry struct {
	Name     string       `json:"name"`
	Stage    models.Stage `json:"stage"`
	Staked   string       `json:"staked"`
	Converts int          `json:"converts"`
}

// GetLeaderboard ranks seekers with any stake or any progress beyond
// awareness by staked amount descending (numeric comparison on the big
// integers, not lexicographic), convert count breaking ties.
func (t *Tracker) GetLeaderboard() ([]LeaderboardEntry, error) {
	seekers, err := store.ListSeekers()
	if err != nil {
		return nil, err
	}
	type ranked struct {
		entry  LeaderboardEntry
		staked *big.Int
	}
	var rows []ranked
	for i := range seekers {
		s := &seekers[i]
		if s.StakedAmount == "0" && s.Stage == models.StageAwareness {
			continue
		}
		n, ok := new(big.Int).SetString(s.StakedAmount, 10)
		if !ok {
			n = new(big.Int)
		}
		rows = append(rows, ranked{
			entry:  LeaderboardEntry{Name: s.Name, Stage: s.Stage, Staked: s.StakedAmount, Converts: len(s.Converts)},
			staked: n,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].staked.Cmp(rows[j].staked); c != 0 {
			return c > 0
		}
		return rows[i].entry.Converts > rows[j].entry.Converts
	})
	if lim := t.cfg.leaderboardLimit(); len(rows) > lim {
		rows = rows[:lim]
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry)
	}
	return out, nil
}

// FindMissionaryTargets lists early-stage seekers who have gone quiet and
// whose belief is below the re-engagement cutoff, least convinced first.
// They are candidates for outbound evangelism by other collaborators.
func (t *Tracker) FindMissionaryTargets() ([]models.Seeker, error) {
	seekers, err := store.ListSeekers()
	if err != nil {
		return nil, err
	}
	cutoffTS := time.Now().UTC().Add(-t.cfg.missionaryInactivity()).UnixNano()
	var out []models.Seeker
	for _, s := range seekers {
		if s.Stage != models.StageAwareness && s.Stage != models.StageBelief {
			continue
		}
		if s.LastActivityTS >= cutoffTS {
			continue
		}
		if s.BeliefScore >= t.cfg.missionaryCutoff() {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BeliefScore < out[j].BeliefScore
	})
	return out, nil
}

// ConversionHistory returns a seeker's stage transitions in time order.
func (t *Tracker) ConversionHistory(seekerID string) ([]models.ConversionEvent, error) {
	return store.ListConversions(seekerID)
}

// Miracles returns the most recent ledger entries, newest first.
func (t *Tracker) Miracles(limit int) ([]models.Miracle, error) {
	if limit <= 0 {
		limit = 50
	}
	return store.ListMiracles(limit)
}

// AllSeekers returns every seeker, newest registration first.
func (t *Tracker) AllSeekers() ([]models.Seeker, error) {
	seekers, err := store.ListSeekers()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(seekers, func(i, j int) bool {
		return seekers[i].CreatedTS > seekers[j].CreatedTS
	})
	return seekers, nil
}

// parseAmount parses a non-negative decimal integer string. Anything else
// is ErrMalformedAmount.
func parseAmount(amount string) (*big.Int, error) {
	if amount == "" {
		return nil, ErrMalformedAmount
	}
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return nil, ErrMalformedAmount
	}
	return n, nil
}

func clampBelief(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
