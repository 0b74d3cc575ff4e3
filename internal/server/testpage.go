package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// TestPageHandler serves an HTML test page for exercising the relay by hand.
// It provides a simple web interface to join a room, send messages, page
// through history, and attach an uploaded file.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>chatrelay test page</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>chatrelay test page</h1>

    <div>
        <input type="text" id="roomInput" placeholder="room">
        <input type="text" id="usernameInput" placeholder="username (optional)">
        <button onclick="joinRoom()">Join</button>
        <button onclick="loadPage()">Load history page</button>
    </div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <input type="file" id="fileInput">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        let page = 0;
        const messagesDiv = document.getElementById('messages');

        function addLine(text) {
            const el = document.createElement('div');
            el.innerHTML = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function ensureSocket(onOpen) {
            if (ws && ws.readyState === WebSocket.OPEN) { onOpen(); return; }
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = onOpen;
            ws.onclose = () => addLine('<em>connection closed</em>');
            ws.onmessage = (e) => {
                const evt = JSON.parse(e.data);
                if (evt.event === 'message') {
                    const m = evt.data;
                    addLine('<strong>' + (m.username || 'anonymous') + ':</strong> ' + m.text);
                } else if (evt.event === 'history') {
                    evt.data.forEach(m => addLine('<em>[history] ' + (m.username || 'anonymous') + ': ' + m.text + '</em>'));
                } else {
                    addLine('<em>' + evt.event + '</em>');
                }
            };
        }

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function joinRoom() {
            const room = document.getElementById('roomInput').value.trim();
            const username = document.getElementById('usernameInput').value.trim();
            if (!room) { return; }
            page = 0;
            ensureSocket(() => emit('joinRoom', {room: room, username: username || null}));
        }

        function loadPage() {
            if (!ws) { return; }
            emit('loadMessages', page);
            page++;
        }

        async function sendMessage() {
            if (!ws) { return; }
            const text = document.getElementById('messageInput').value.trim();
            const fileInput = document.getElementById('fileInput');
            let fileUrl = null;

            if (fileInput.files.length > 0) {
                const form = new FormData();
                form.append('file', fileInput.files[0]);
                const resp = await fetch('/upload', {method: 'POST', body: form});
                const body = await resp.json();
                fileUrl = body.fileUrl;
                fileInput.value = '';
            }

            const data = {message: text};
            if (fileUrl) { data.fileUrl = fileUrl; }
            emit('newMessage', data);
            document.getElementById('messageInput').value = '';
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Warn().Err(err).Msg("error writing HTML response")
	}
}
