package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"noteserver/backend/internal/collab"
)

const presenceTTL = 600 * time.Second

type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	docID    string
	userID   uint64
	username string
	// send is never closed; writeLoop exits on closed instead, so room
	// broadcasts racing a disconnect cannot hit a closed channel.
	send      chan OutboundMessage
	closed    chan struct{}
	closeOnce sync.Once
	svc       collab.Service
	sem       *collab.SemaphoreControl
}

type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string    { return m.Type }
func (m RevSubmitMessage) MessageType() string { return m.Type }
func (m RevAckMessage) MessageType() string    { return m.Type }
func (m RevPushMessage) MessageType() string   { return m.Type }

func NewConn(ws *websocket.Conn, hub *Hub, docID string, userID uint64, username string, svc collab.Service, sem *collab.SemaphoreControl) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		docID:    docID,
		userID:   userID,
		username: username,
		send:     make(chan OutboundMessage, 32),
		closed:   make(chan struct{}),
		svc:      svc,
		sem:      sem,
	}
}

// Close stops the write loop. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// SendMessage_Enqueue drops the message when the outbound queue is full; a
// slow reader must not stall the room.
func (c *Conn) SendMessage_Enqueue(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Conn) handleRevSubmit(ctx context.Context, msg RevSubmitMessage) {
	submitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	if err := c.sem.Acquire(submitCtx); err != nil {
		c.SendMessage_Enqueue(ServerMessage{Type: "error", Content: err.Error()})
		return
	}
	defer c.sem.Release()

	applied, err := c.svc.Submit(submitCtx, msg.DocID, c.userID,
		msg.BaseRevID, msg.ClientID, msg.ClientSeq, msg.Change)
	if err != nil {
		c.SendMessage_Enqueue(ServerMessage{Type: "error", DocID: msg.DocID, Content: err.Error()})
		return
	}
	c.SendMessage_Enqueue(RevAckMessage{
		Type:      "rev_ack",
		DocID:     msg.DocID,
		BaseRevID: msg.BaseRevID,
		RevID:     applied.RevID,
		ClientID:  msg.ClientID,
		ClientSeq: msg.ClientSeq,
		MD5:       applied.MD5,
	})
	c.hub.BroadcastRevision(msg.DocID, c, RevPushMessage{
		Type:      "rev_push",
		DocID:     msg.DocID,
		RevID:     applied.RevID,
		BaseRevID: applied.BaseRevID,
		AuthorID:  c.userID,
		ClientID:  msg.ClientID,
		Change:    applied.Change,
		MD5:       applied.MD5,
		AppliedAt: applied.AppliedAt,
	})
}

// handleRevPull answers a gap pull with the missing revisions in order, each
// as its own rev_push.
func (c *Conn) handleRevPull(ctx context.Context, docID string, fromRevID, toRevID int64) {
	limit := 0
	if toRevID > fromRevID {
		limit = int(toRevID - fromRevID)
	}
	revs, err := c.svc.RevisionsSince(ctx, docID, fromRevID, limit)
	if err != nil {
		c.SendMessage_Enqueue(ServerMessage{Type: "error", DocID: docID, Content: err.Error()})
		return
	}
	for _, rev := range revs {
		d, derr := rev.Delta()
		if derr != nil {
			log.Printf("rev pull decode error (doc=%s, rev=%d): %v", docID, rev.RevID, derr)
			return
		}
		c.SendMessage_Enqueue(RevPushMessage{
			Type:      "rev_push",
			DocID:     docID,
			RevID:     rev.RevID,
			BaseRevID: rev.BaseRevID,
			Change:    d,
			MD5:       rev.MD5,
		})
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer c.Close()
	for {
		var clientMessage ClientMessage
		if err := c.ws.ReadJSON(&clientMessage); err != nil {
			log.Printf("read json error (user=%d, doc=%s): %v", c.userID, c.docID, err)
			return
		}
		switch clientMessage.Type {
		case "heartbeat":
			if err := c.hub.presence.AddMember(ctx, c.docID, c.userID, c.username, presenceTTL); err != nil {
				log.Printf("add member error: %v", err)
			}
			members, err := c.hub.presence.GetAliveMembersWithNames(ctx, c.docID)
			if err != nil {
				log.Printf("get members error: %v", err)
			}
			for _, member := range members {
				c.send <- ServerMessage{Type: "presence", Content: fmt.Sprintf("User %d(%s) is online", member.UserID, member.Username)}
			}
			c.send <- ServerMessage{Type: "feedback", Content: "Heartbeat received"}

		case "createDocument":
			docTitle := clientMessage.DocTitle
			if err := c.svc.CreateDocument(ctx, c.userID, docTitle); err != nil {
				log.Printf("create document error: %v", err)
				c.send <- ServerMessage{Type: "error", Content: "CREATE_DOC_FAILED"}
				return
			}
			docID, err := c.svc.GetDocumentID(ctx, docTitle)
			if err != nil {
				log.Printf("get document id error: %v", err)
				c.send <- ServerMessage{Type: "error", Content: "GET_DOCID_FAILED"}
				return
			}
			c.hub.presence.AddMember(ctx, docID, c.userID, c.username, presenceTTL)
			c.send <- ServerMessage{Type: "createDocument", DocID: docID, Content: "Document " + docID + " created by user " + strconv.FormatUint(c.userID, 10)}

		case "joinDocument":
			// A client can name a title here to switch rooms.
			if clientMessage.DocTitle != "" {
				docID, err := c.svc.GetDocumentID(ctx, clientMessage.DocTitle)
				if err != nil {
					log.Printf("get document id error: %v", err)
					c.send <- ServerMessage{Type: "error", Content: "GET_DOCID_FAILED"}
					continue
				}
				if c.docID != "" && c.docID != docID {
					c.hub.Leave(c.docID, c)
				}
				c.docID = docID
			}

			documents, err := c.hub.presence.GetDocuments(ctx)
			if err != nil {
				log.Printf("get documents error: %v", err)
			}
			if !slices.Contains(documents, c.docID) {
				c.send <- ServerMessage{Type: "joinDocument", DocID: c.docID, Content: "Document " + c.docID + " not found"}
				continue
			}
			c.hub.Join(c.docID, c)
			c.hub.presence.AddMember(ctx, c.docID, c.userID, c.username, presenceTTL)
			c.send <- ServerMessage{Type: "joinDocument", DocID: c.docID, Content: "Document " + c.docID + " joined by user " + strconv.FormatUint(c.userID, 10)}

			// Tell the room about the new roster.
			if members, merr := c.hub.presence.GetAliveMembersWithNames(ctx, c.docID); merr == nil {
				roster := make([]PresenceMember, len(members))
				for i, m := range members {
					roster[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
				}
				c.hub.BroadcastPresence(c.docID, roster)
			}

		case "show_alive_members":
			members, err := c.hub.presence.GetAliveMembersWithNames(ctx, c.docID)
			if err != nil {
				log.Printf("get alive members with names error: %v", err)
			}
			memberNames := make([]PresenceMember, len(members))
			for i, m := range members {
				memberNames[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
			}
			c.send <- ServerMessage{Type: "show_alive_members", Members: memberNames, Content: fmt.Sprintf("Alive members: %v", memberNames)}

		case "cursor":
			if clientMessage.Range != nil {
				// Keep the last position around so a late joiner can fetch it.
				if data, merr := json.Marshal(clientMessage.Range); merr == nil {
					if err := c.hub.presence.SetCursor(ctx, c.docID, c.userID, data, presenceTTL); err != nil {
						log.Printf("set cursor error: %v", err)
					}
				}
				c.hub.BroadcastCursor(c.docID, c.userID, clientMessage.Range)
			}

		case "show_cursor":
			data, err := c.hub.presence.GetCursor(ctx, c.docID, clientMessage.UserID)
			if err != nil {
				log.Printf("get cursor error: %v", err)
				continue
			}
			var rng interface{}
			if err := json.Unmarshal(data, &rng); err != nil {
				log.Printf("decode cursor error: %v", err)
				continue
			}
			c.send <- ServerMessage{Type: "cursor", DocID: c.docID, UserID: clientMessage.UserID, Range: rng}

		case "rev_submit":
			msg := RevSubmitMessage{
				Type:      clientMessage.Type,
				DocID:     clientMessage.DocID,
				BaseRevID: clientMessage.BaseRevID,
				ClientID:  clientMessage.ClientID,
				ClientSeq: clientMessage.ClientSeq,
				Change:    clientMessage.Change,
			}
			c.handleRevSubmit(ctx, msg)

		case "rev_pull":
			c.handleRevPull(ctx, clientMessage.DocID, clientMessage.FromRevID, clientMessage.ToRevID)

		case "saveDocument":
			if err := c.svc.SaveSnapshot(ctx, clientMessage.DocID); err != nil {
				log.Printf("save document error: %v", err)
				c.send <- ServerMessage{Type: "saveDocument", Content: "Document " + clientMessage.DocID + " save failed"}
				continue
			}
			c.send <- ServerMessage{Type: "saveDocument", Content: "Document " + clientMessage.DocID + " saved"}

		case "loadDocumentContent":
			content, revID, err := c.svc.LoadDocumentContent(ctx, clientMessage.DocID)
			if err != nil {
				log.Printf("load document content error: %v", err)
			} else {
				c.send <- ServerMessage{Type: "loadDocumentContent", Content: content, RevID: revID}
			}

		default:
			c.send <- ServerMessage{Type: "ignored", Content: "Unknown message type"}
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.WriteJSON(msg)
		case <-c.closed:
			return
		}
	}
}
