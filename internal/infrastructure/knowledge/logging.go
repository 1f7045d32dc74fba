// Package knowledge adaptadores del indexador de contexto conversacional.
package knowledge

import (
	"context"

	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

var _ ports.KnowledgeIndexer = (*LoggingIndexer)(nil)

// LoggingIndexer implementación local del indexador: deja constancia en el
// log. El indexador real es un servicio externo fuera de este repositorio.
type LoggingIndexer struct {
	log *logger.Logger
}

// NewLoggingIndexer construye el indexador de solo log.
func NewLoggingIndexer(log *logger.Logger) *LoggingIndexer {
	return &LoggingIndexer{log: log}
}

// IndexOrder registra el pedido aceptado para el contexto conversacional.
func (i *LoggingIndexer) IndexOrder(_ context.Context, order *entity.Order) error {
	i.log.Info().Str("order_id", order.OrderID).Str("conversation_id", order.ConversationID).
		Str("status", string(order.Status)).Msg("pedido indexado en contexto")
	return nil
}
