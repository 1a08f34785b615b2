package generate

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"geotiler/tile"
)

// Handler serves tiles over HTTP.
//
//	GET /generatetile?tile={tile}[&renderonly=1]  renders a tile
//	GET /tiles/{categoryID}/{x}-{y}-{zoom}.{ext}  serves the cached file, rendering it when missing
//	GET /tiles/{x}-{y}-{zoom}.{ext}
//
// With renderonly set the tile is rendered, cached and answered with an
// empty 200, which is what queue workers call.
func (g *Generator) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(false)
	router.Path("/ping").HandlerFunc(pingPong)
	router.Path("/generatetile").HandlerFunc(g.handleGenerate).Methods(http.MethodGet)
	router.Path("/tiles/{category:[0-9]+}/{name}").HandlerFunc(g.handleTile).Methods(http.MethodGet)
	router.Path("/tiles/{name}").HandlerFunc(g.handleTile).Methods(http.MethodGet)

	access := g.logger.WriterLevel(log.DebugLevel)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(g.logger))(
		handlers.CombinedLoggingHandler(access, router))
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}

func (g *Generator) handleGenerate(w http.ResponseWriter, r *http.Request) {
	spec := r.URL.Query().Get("tile")
	if spec == "" {
		http.Error(w, "missing tile", http.StatusBadRequest)
		return
	}
	addr, err := tile.Parse(spec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	renderOnly, _ := strconv.ParseBool(r.URL.Query().Get("renderonly"))
	g.serve(w, r, addr, renderOnly)
}

func (g *Generator) handleTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	spec := vars["name"]
	if c, ok := vars["category"]; ok {
		spec = c + "/" + spec
	}
	addr, err := tile.Parse(spec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if g.opts.CacheTiles {
		path := addr.CachePath(g.opts.CacheDir)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			w.Header().Set("Content-Type", addr.Format.ContentType())
			http.ServeFile(w, r, path)
			return
		}
	}
	g.serve(w, r, addr, false)
}

func (g *Generator) serve(w http.ResponseWriter, r *http.Request, addr tile.Address, renderOnly bool) {
	data, err := g.Tile(r.Context(), addr)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrOutOfRange) {
			code = http.StatusBadRequest
		} else {
			g.logger.Errorf("render %s error ~ %s", addr, err)
		}
		http.Error(w, err.Error(), code)
		return
	}
	if renderOnly {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", addr.Format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
