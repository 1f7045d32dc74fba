package notify

import (
	"context"

	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

var _ ports.Notifier = (*LogNotifier)(nil)

// LogNotifier notificador de desarrollo: escribe el mensaje al log y nada más.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier construye el notificador de solo log.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// SendText loguea el mensaje. Nunca falla.
func (n *LogNotifier) SendText(_ context.Context, phone, text string) error {
	n.log.Info().Str("to", phone).Str("text", text).Msg("notificación (solo log)")
	return nil
}
