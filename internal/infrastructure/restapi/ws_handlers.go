package restapi

import (
	"context"
	"net/http"
	"time"

	"currency_status/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// WSMessage is one frame of the token list websocket.
type WSMessage struct {
	Type      string            `json:"type"`
	TokenList *entity.TokenList `json:"tokenList,omitempty"`
	Error     *ErrorResponse    `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchTokenList answers GET /wallets/:walletID/tokens/ws. Every token list of the
// wallet is written as a JSON frame until the client goes away.
func (h *TokenHandler) WatchTokenList(c *gin.Context) {
	walletID := entity.WalletID(c.Param("walletID"))
	logger := h.logger.With(zap.String("wallet", string(walletID)))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the read loop only notices the peer closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	stream, err := h.tokens.GetTokenList(ctx, walletID)
	if err != nil {
		resp := errorBody(err)
		_ = h.writeFrame(conn, WSMessage{Type: "error", Error: &resp})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, resp.Code),
			time.Now().Add(wsWriteWait))
		return
	}

	emitted := 0
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Token list websocket closed", zap.Int("emitted", emitted))
			return
		case res, ok := <-stream:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteWait))
				return
			}
			msg := WSMessage{Type: "tokenList"}
			if res.Err != nil {
				resp := errorBody(res.Err)
				msg = WSMessage{Type: "error", Error: &resp}
			} else {
				list := res.Value
				msg.TokenList = &list
			}
			if err := h.writeFrame(conn, msg); err != nil {
				logger.Info("Websocket write failed", zap.Error(err))
				return
			}
			emitted++
		}
	}
}

func (h *TokenHandler) writeFrame(conn *websocket.Conn, msg WSMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
