package httpapi

import (
	"fmt"
	"net/http"
)

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Learning Studio Index Sync</title>
  <style>
    :root { --ink: #1d2426; --paper: #f6f3ec; --card: #fffdf8; --line: #dcd2bf; --ok: #2a8c6a; --bad: #c2483f; --muted: #6c7676; }
    * { box-sizing: border-box; }
    body { margin: 0; font: 14px/1.45 ui-sans-serif, system-ui, sans-serif; color: var(--ink); background: var(--paper); }
    header { padding: 18px 24px; border-bottom: 1px solid var(--line); display: flex; gap: 12px; align-items: center; }
    header h1 { font-size: 18px; margin: 0; flex: 1; }
    main { padding: 20px 24px; display: grid; gap: 20px; }
    table { width: 100%; border-collapse: collapse; background: var(--card); border: 1px solid var(--line); }
    th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid var(--line); vertical-align: top; }
    th { font-weight: 600; color: var(--muted); font-size: 12px; text-transform: uppercase; }
    .running { color: var(--ok); }
    .stopped, .error { color: var(--bad); }
    input, button { font: inherit; padding: 6px 10px; border: 1px solid var(--line); border-radius: 6px; background: var(--card); }
    button { cursor: pointer; }
    #feed { font-family: ui-monospace, monospace; font-size: 12px; max-height: 240px; overflow: auto; background: var(--card); border: 1px solid var(--line); padding: 8px; }
  </style>
</head>
<body>
  <header>
    <h1>Index sync</h1>
    <input id="token" placeholder="admin token (optional)" size="28" />
    <button id="sync">Sync all now</button>
  </header>
  <main>
    <section>
      <table>
        <thead><tr><th>Collection</th><th>State</th><th>Interval</th><th>Runs</th><th>Changes</th><th>Last run</th><th>Last error</th></tr></thead>
        <tbody id="schedulers"></tbody>
      </table>
    </section>
    <section>
      <table>
        <thead><tr><th>At</th><th>Collection</th><th>Source</th><th>Added</th><th>Removed</th><th>Total</th></tr></thead>
        <tbody id="journal"></tbody>
      </table>
    </section>
    <section><div id="feed"></div></section>
  </main>
  <script>
    (() => {
      const tokenInput = document.getElementById('token');
      tokenInput.value = localStorage.getItem('learnstudio.adminToken') || '';
      tokenInput.addEventListener('change', () => localStorage.setItem('learnstudio.adminToken', tokenInput.value.trim()));

      const headers = () => {
        const token = tokenInput.value.trim();
        return token ? { Authorization: 'Bearer ' + token } : {};
      };
      const cell = (text, cls) => {
        const td = document.createElement('td');
        td.textContent = text == null ? '' : String(text);
        if (cls) td.className = cls;
        return td;
      };
      const fill = (id, rows) => {
        const body = document.getElementById(id);
        body.replaceChildren(...rows.map(cells => {
          const tr = document.createElement('tr');
          tr.append(...cells);
          return tr;
        }));
      };

      async function refresh() {
        const res = await fetch('/api/admin/sync?limit=25', { headers: headers() });
        const body = await res.json();
        if (!body.success) {
          fill('schedulers', [[cell(body.error || res.statusText, 'error')]]);
          return;
        }
        fill('schedulers', body.data.schedulers.map(s => [
          cell(s.collection), cell(s.state, s.state), cell(s.interval), cell(s.runs),
          cell(s.changes), cell(s.lastRun), cell(s.lastError, 'error'),
        ]));
        fill('journal', body.data.journal.map(e => [
          cell(e.at), cell(e.collection), cell(e.source), cell(e.added.join(', ')),
          cell(e.removed.join(', ')), cell(e.total),
        ]));
      }

      document.getElementById('sync').addEventListener('click', async () => {
        await fetch('/api/admin/sync', { method: 'POST', headers: headers() });
        refresh();
      });

      const feed = document.getElementById('feed');
      const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
      const ws = new WebSocket(proto + '//' + location.host + '/api/events');
      ws.onmessage = (msg) => {
        const line = document.createElement('div');
        line.textContent = new Date().toISOString() + ' ' + msg.data;
        feed.prepend(line);
        refresh();
      };

      refresh();
      setInterval(refresh, 10000);
    })();
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, dashboardHTML)
}
