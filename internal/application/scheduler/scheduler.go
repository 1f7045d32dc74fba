package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/pedidos-api/internal/application/order"
	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// Scheduler barrido periódico de pedidos pendientes: expira los vencidos y
// envía recordatorios al comercio en los offsets configurados.
//
// Garantía de recordatorios: cada offset se marca como enviado ANTES de
// enviar (semántica de conjunto en el store, el marcado devuelve si fue
// agregado por esta llamada). Dos ciclos solapados no pueden duplicar un
// recordatorio; a cambio, un envío que falla tras el marcado se pierde. La
// entrega es a-lo-sumo-una-vez, nunca dos.
type Scheduler struct {
	orders    *order.UseCase
	repo      repository.OrderRepository
	merchants repository.MerchantRepository
	notifier  ports.Notifier
	log       *logger.Logger
	interval  time.Duration
	offsets   []int // horas desde la creación, orden ascendente
	now       func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New construye el scheduler. offsetsHours se ordena ascendente.
func New(
	orders *order.UseCase,
	repo repository.OrderRepository,
	merchants repository.MerchantRepository,
	notifier ports.Notifier,
	log *logger.Logger,
	interval time.Duration,
	offsetsHours []int,
) *Scheduler {
	offsets := append([]int(nil), offsetsHours...)
	sort.Ints(offsets)
	return &Scheduler{
		orders:    orders,
		repo:      repo,
		merchants: merchants,
		notifier:  notifier,
		log:       log,
		interval:  interval,
		offsets:   offsets,
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
}

// WithClock reemplaza el reloj (tests de avance de tiempo).
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start lanza el loop de barrido en una goroutine. Ejecuta un ciclo inmediato
// y luego uno por intervalo hasta Stop o cancelación del contexto.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().Dur("interval", s.interval).Ints("offsets_hours", s.offsets).
			Msg("scheduler iniciado")
		s.RunCycle(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop detiene el loop y espera a que el ciclo en curso termine.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	s.log.Info().Msg("scheduler detenido")
}

// RunCycle un barrido completo. El fallo de un pedido nunca aborta el ciclo:
// cada pedido se procesa en su propia goroutine y los errores solo se loguean.
func (s *Scheduler) RunCycle(ctx context.Context) {
	pending, err := s.orders.PendingForExpiry(ctx, 0)
	if err != nil {
		s.log.Error().Err(err).Msg("listar pedidos pendientes")
		return
	}
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, o := range pending {
		o := o
		g.Go(func() error {
			if err := s.processOrder(gctx, o); err != nil {
				s.log.Error().Err(err).Str("order_id", o.OrderID).Msg("procesar pedido en barrido")
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.Debug().Int("pending", len(pending)).Msg("ciclo de barrido completado")
}

// processOrder expira el pedido si venció; si no, envía a lo sumo UN
// recordatorio: el menor offset ya alcanzado y aún no marcado.
func (s *Scheduler) processOrder(ctx context.Context, o *entity.Order) error {
	now := s.now()

	if !now.Before(o.ExpiresAt) {
		_, err := s.orders.Expire(ctx, o.OrderID)
		return err
	}

	elapsed := now.Sub(o.CreatedAt)
	for _, offset := range s.offsets {
		if elapsed < time.Duration(offset)*time.Hour {
			break
		}
		if o.ReminderSent(offset) {
			continue
		}
		added, err := s.repo.MarkReminderSent(ctx, o.OrderID, offset)
		if err != nil {
			return fmt.Errorf("marcar recordatorio %dh: %w", offset, err)
		}
		if !added {
			// Otro ciclo lo marcó primero.
			continue
		}
		s.sendReminder(ctx, o, offset)
		return nil
	}
	return nil
}

// sendReminder mejor-esfuerzo al teléfono del comercio.
func (s *Scheduler) sendReminder(ctx context.Context, o *entity.Order, offset int) {
	merchant, err := s.merchants.Get(ctx, o.MerchantID)
	if err != nil || merchant == nil || merchant.Phone == "" {
		s.log.Warn().Str("order_id", o.OrderID).Str("merchant_id", o.MerchantID).
			Msg("sin teléfono de comercio para recordatorio")
		return
	}
	remaining := o.ExpiresAt.Sub(s.now()).Round(time.Minute)
	text := fmt.Sprintf(
		"Recordatorio: el pedido %s (%d ítems, total %s) lleva %dh sin respuesta y expira en %s. Responde para aceptarlo o rechazarlo.",
		o.OrderID, o.ItemCount, o.TotalAmount, offset, remaining)
	if err := s.notifier.SendText(ctx, merchant.Phone, text); err != nil {
		s.log.Error().Err(err).Str("order_id", o.OrderID).Int("offset_hours", offset).
			Msg("enviar recordatorio")
		return
	}
	s.log.Info().Str("order_id", o.OrderID).Int("offset_hours", offset).Msg("recordatorio enviado")
}
