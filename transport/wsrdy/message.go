package wsrdy

import "fmt"

// message adapts one MSG frame to dispatch.Message. Finish/Requeue write
// the matching FIN/REQ control line back over the same connection.
type message struct {
	id   string
	body []byte
	conn *Connection
}

func (m *message) Key() []byte              { return []byte(m.id) }
func (m *message) Value() []byte            { return m.body }
func (m *message) Headers() map[string]string { return nil }

func (m *message) Finish() error {
	if err := m.conn.send(finLine(m.id)); err != nil {
		return fmt.Errorf("rdymux/wsrdy: fin %s: %w", m.id, err)
	}
	m.conn.reportFinished()
	return nil
}

func (m *message) Requeue() error {
	if err := m.conn.send(reqLine(m.id)); err != nil {
		return fmt.Errorf("rdymux/wsrdy: req %s: %w", m.id, err)
	}
	m.conn.reportRequeued()
	return nil
}
