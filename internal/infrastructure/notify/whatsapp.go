// Package notify implementa los gateways de mensajería saliente.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

var _ ports.Notifier = (*WhatsAppGateway)(nil)

// WhatsAppGateway envía texto vía un endpoint estilo WhatsApp Cloud API.
type WhatsAppGateway struct {
	apiURL string
	token  string
	client *http.Client
	log    *logger.Logger
}

// NewWhatsAppGateway construye el gateway con timeout propio: un proveedor
// lento no debe colgar las rutas mejor-esfuerzo que lo invocan.
func NewWhatsAppGateway(apiURL, token string, log *logger.Logger) *WhatsAppGateway {
	return &WhatsAppGateway{
		apiURL: apiURL,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText envía un mensaje de texto. El caller decide qué hacer con el error
// (en todos los flujos actuales: loguear y seguir).
func (g *WhatsAppGateway) SendText(ctx context.Context, phone, text string) error {
	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway respondió %d: %s", resp.StatusCode, body)
	}
	g.log.Debug().Str("to", phone).Msg("mensaje enviado")
	return nil
}
