// Package ports declara los colaboradores externos del núcleo.
// Mensajería, reglas de negocio e indexación de conocimiento se invocan
// siempre en modo mejor-esfuerzo: sus fallos se loguean y jamás bloquean
// una transición de pedido.
package ports

import (
	"context"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// Notifier gateway de mensajería saliente ("enviar texto a un identificador
// tipo teléfono"). La entrega no es exactamente-una-vez.
type Notifier interface {
	SendText(ctx context.Context, phone, text string) error
}

// RuleEvaluator evaluador de reglas de negocio, invocado tras una aceptación
// exitosa.
type RuleEvaluator interface {
	EvaluateOrder(ctx context.Context, order *entity.Order) error
}

// KnowledgeIndexer actualiza el contexto/índice de conocimiento tras una
// aceptación exitosa. La implementación real es un colaborador externo.
type KnowledgeIndexer interface {
	IndexOrder(ctx context.Context, order *entity.Order) error
}
