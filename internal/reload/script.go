package reload

// Endpoint is the WebSocket path the client script connects to.
const Endpoint = "/_loom/reload"

// ClientScript is injected into HTML served through the dev proxy. It
// reconnects with backoff and handles the two directive kinds: a full page
// reload and an in-place stylesheet swap.
const ClientScript = `
<script>
(function() {
    'use strict';

    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;
    var ws = null;

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        ws = new WebSocket(protocol + '//' + location.host + '` + Endpoint + `');

        ws.onopen = function() {
            console.log('[loom] Reload connected');
            reconnectDelay = 1000;
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }

            switch (msg.kind) {
                case 'reload':
                    console.log('[loom] Reloading...');
                    location.reload();
                    break;

                case 'style':
                    console.log('[loom] Swapping styles...');
                    swapStyles(msg.path);
                    break;
            }
        };

        ws.onclose = function() {
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    function swapStyles(path) {
        var links = document.querySelectorAll('link[rel="stylesheet"]');
        var stamp = Date.now();
        for (var i = 0; i < links.length; i++) {
            var link = links[i];
            var href = link.getAttribute('href');
            if (!href) continue;
            if (path && href.split('?')[0].indexOf(path) === -1) continue;
            link.setAttribute('href', href.split('?')[0] + '?t=' + stamp);
        }
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`
