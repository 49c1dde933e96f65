package custody

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolCustody/internal/amm"
	"poolCustody/internal/ledger"
	"poolCustody/internal/model"
	"poolCustody/internal/state"
)

// Options configures a Service.
type Options struct {
	ProgramID solana.PublicKey
	Policy    Policy
	Logger    *zap.Logger
	// Now overrides the unix clock. Tests use it to cross loan maturity.
	Now func() int64
}

// Service owns the custody program state: the config, the service vault and
// every loan escrow. Operations are serialized and each one either commits
// in full or leaves state untouched.
type Service struct {
	mu sync.Mutex

	backend   state.Backend
	adapter   amm.Adapter
	programID solana.PublicKey
	policy    Policy
	logger    *zap.Logger
	nowFn     func() int64
	feed      event.Feed

	configAddr solana.PublicKey
	configBump uint8
	vaultAddr  solana.PublicKey
	vaultBump  uint8
	faucetAddr solana.PublicKey
}

func NewService(backend state.Backend, adapter amm.Adapter, opts Options) (*Service, error) {
	if backend == nil {
		return nil, errors.New("state backend is required")
	}
	if adapter == nil {
		return nil, errors.New("amm adapter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	programID := opts.ProgramID
	if programID.IsZero() {
		programID = model.DefaultProgramID
	}

	configAddr, configBump, err := model.ConfigAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("derive config address: %w", err)
	}
	vaultAddr, vaultBump, err := model.VaultAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("derive vault address: %w", err)
	}
	faucetAddr, _, err := model.FaucetAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("derive faucet address: %w", err)
	}

	s := &Service{
		backend:    backend,
		adapter:    adapter,
		programID:  programID,
		policy:     opts.Policy,
		logger:     logger,
		configAddr: configAddr,
		configBump: configBump,
		vaultAddr:  vaultAddr,
		vaultBump:  vaultBump,
		faucetAddr: faucetAddr,
	}
	s.SetNowFunc(opts.Now)
	return s, nil
}

// SetNowFunc overrides the time source. Passing nil restores the wall clock.
func (s *Service) SetNowFunc(now func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

// Now returns the service clock in unix seconds.
func (s *Service) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowFn()
}

// Subscribe delivers every committed event to ch. Sends block until ch
// accepts, so subscribers should buffer and must not call back into the
// service from the receiving goroutine synchronously.
func (s *Service) Subscribe(ch chan<- model.Event) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *Service) ProgramID() solana.PublicKey { return s.programID }
func (s *Service) ConfigAddress() solana.PublicKey { return s.configAddr }
func (s *Service) VaultAddress() solana.PublicKey { return s.vaultAddr }

// txn is the working set of one operation.
type txn struct {
	view   *state.View
	ledger *ledger.Ledger
	now    int64
	events []model.Event
}

func (t *txn) emit(typ string, actor, pool solana.PublicKey, attrs map[string]string) {
	ev := model.Event{
		Type:       typ,
		Timestamp:  t.now,
		Actor:      actor.String(),
		Attributes: attrs,
	}
	if !pool.IsZero() {
		ev.Pool = pool.String()
	}
	t.events = append(t.events, ev)
}

// maxConflictRetries bounds how often an operation is re-run after another
// process committed over the state it read.
const maxConflictRetries = 5

// execute runs fn against a fresh view and commits only when fn succeeds.
// A commit that conflicts with another writer re-runs fn on current state.
func (s *Service) execute(ctx context.Context, op string, fn func(tx *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		view := state.NewView(ctx, s.backend)
		tx := &txn{view: view, ledger: ledger.New(view), now: s.nowFn()}
		if err := fn(tx); err != nil {
			s.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
			return err
		}
		err := view.Commit()
		if errors.Is(err, state.ErrConflict) && attempt < maxConflictRetries {
			s.logger.Warn("commit conflict, retrying", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if err != nil {
			s.logger.Error("commit failed", zap.String("op", op), zap.Error(err))
			return fmt.Errorf("commit %s: %w", op, err)
		}
		for _, ev := range tx.events {
			s.feed.Send(ev)
		}
		s.logger.Info("operation committed", zap.String("op", op), zap.Int("events", len(tx.events)))
		return nil
	}
}

// read runs fn against a view that is never committed.
func (s *Service) read(ctx context.Context, fn func(tx *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	view := state.NewView(ctx, s.backend)
	return fn(&txn{view: view, ledger: ledger.New(view), now: s.nowFn()})
}

func (s *Service) loadConfig(tx *txn) (model.Config, error) {
	var cfg model.Config
	ok, err := model.LoadAccount(tx.view, model.Key(model.NamespaceConfig, s.configAddr), &cfg)
	if err != nil {
		return model.Config{}, err
	}
	if !ok || !cfg.Initialized {
		return model.Config{}, ErrNotInitialized
	}
	return cfg, nil
}

func (s *Service) storeConfig(tx *txn, cfg model.Config) error {
	return model.StoreAccount(tx.view, model.Key(model.NamespaceConfig, s.configAddr), cfg)
}

func (s *Service) loanAddress(pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := model.LoanAddress(s.programID, pool)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive loan address: %w", err)
	}
	return addr, nil
}

func (s *Service) loadLoan(tx *txn, pool solana.PublicKey) (model.LoanEscrow, solana.PublicKey, error) {
	addr, err := s.loanAddress(pool)
	if err != nil {
		return model.LoanEscrow{}, solana.PublicKey{}, err
	}
	var loan model.LoanEscrow
	ok, err := model.LoadAccount(tx.view, model.Key(model.NamespaceLoan, addr), &loan)
	if err != nil {
		return model.LoanEscrow{}, solana.PublicKey{}, err
	}
	if !ok {
		return model.LoanEscrow{}, solana.PublicKey{}, fmt.Errorf("%w: pool %s", ErrLoanNotFound, pool)
	}
	return loan, addr, nil
}

func (s *Service) storeLoan(tx *txn, addr solana.PublicKey, loan model.LoanEscrow) error {
	return model.StoreAccount(tx.view, model.Key(model.NamespaceLoan, addr), loan)
}

func requireAdmin(cfg model.Config, caller solana.PublicKey) error {
	if !cfg.Admin.Equals(caller) {
		return fmt.Errorf("%w: %s is not the admin", ErrUnauthorized, caller)
	}
	return nil
}

// translate maps ledger and AMM failures onto the custody error kinds while
// keeping the original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	case errors.Is(err, ledger.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
	case errors.Is(err, ledger.ErrMintNotFound), errors.Is(err, ledger.ErrMintMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidMint, err)
	case errors.Is(err, amm.ErrSlippage):
		return fmt.Errorf("%w: %w", ErrSlippageExceeded, err)
	case errors.Is(err, amm.ErrPoolExists):
		return fmt.Errorf("%w: %w", ErrPoolAlreadyExists, err)
	default:
		return err
	}
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }
