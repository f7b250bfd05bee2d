// Package inventory holds the fixed catalog of read queries the agent
// may run. Every statement here is written by us; user input only ever
// travels through bound parameters.
package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mincaelectric/inventory-agent/internal/classifier"
)

// Section is one named block of rows a query contributes to the answer
// context. Most queries yield one section; conteos yields two.
type Section struct {
	Source string           `json:"fuente"`
	Rows   []map[string]any `json:"datos"`
}

// QueryFunc runs one category's fixed statement set. The only supported
// parameter today is "referencia", an exact part reference filter.
type QueryFunc func(ctx context.Context, pool *pgxpool.Pool, params map[string]string) ([]Section, error)

// Registry maps every dispatchable category to its query.
func Registry() map[classifier.Category]QueryFunc {
	return map[classifier.Category]QueryFunc{
		classifier.CategoryInventario:          queryInventario,
		classifier.CategoryGarantias:           queryGarantias,
		classifier.CategoryMovimientosTecnicos: queryMovimientosTecnicos,
		classifier.CategorySolicitudes:         querySolicitudes,
		classifier.CategoryConteos:             queryConteos,
		classifier.CategoryRepuestos:           queryRepuestos,
	}
}

const sqlInventario = `
	SELECT
		r.referencia,
		r.nombre AS nombre_repuesto,
		r.marca,
		r.tipo,
		i.cantidad,
		i.cantidad_minima,
		i.posicion,
		l.nombre AS localizacion,
		CASE
			WHEN i.cantidad = 0 THEN 'sin stock'
			WHEN i.cantidad <= i.cantidad_minima THEN 'stock bajo'
			ELSE 'normal'
		END AS estado_stock
	FROM inventario i
	JOIN repuestos r ON i.id_repuesto = r.id_repuesto
	JOIN localizacion l ON i.id_localizacion = l.id_localizacion
	WHERE ($1 = '' OR r.referencia = $1)
	ORDER BY l.nombre, r.nombre
	LIMIT 300`

func queryInventario(ctx context.Context, pool *pgxpool.Pool, params map[string]string) ([]Section, error) {
	rows, err := runQuery(ctx, pool, "inventario", sqlInventario, params["referencia"])
	if err != nil {
		return nil, err
	}
	return []Section{{Source: "inventario", Rows: rows}}, nil
}

const sqlGarantias = `
	SELECT
		g.id_garantia::text,
		g.referencia_repuesto,
		g.nombre_repuesto,
		g.estado,
		g.motivo_falla,
		g.comentarios_resolucion,
		g.orden,
		g.solicitante,
		g.kilometraje,
		l.nombre AS localizacion,
		u.nombre AS usuario_reporta,
		t.nombre AS tecnico_asociado,
		g.created_at::text AS fecha_creacion,
		g.updated_at::text AS fecha_actualizacion
	FROM garantias g
	JOIN localizacion l ON g.id_localizacion = l.id_localizacion
	JOIN usuarios u ON g.id_usuario_reporta = u.id_usuario
	LEFT JOIN usuarios t ON g.id_tecnico_asociado = t.id_usuario
	WHERE ($1 = '' OR g.referencia_repuesto = $1)
	ORDER BY g.created_at DESC
	LIMIT 150`

func queryGarantias(ctx context.Context, pool *pgxpool.Pool, params map[string]string) ([]Section, error) {
	rows, err := runQuery(ctx, pool, "garantias", sqlGarantias, params["referencia"])
	if err != nil {
		return nil, err
	}
	return []Section{{Source: "garantias", Rows: rows}}, nil
}

const sqlMovimientosTecnicos = `
	SELECT
		r.referencia,
		r.nombre AS nombre_repuesto,
		mt.concepto::text AS concepto,
		mt.tipo::text AS tipo,
		mt.cantidad,
		mt.numero_orden,
		mt.descargada,
		l.nombre AS localizacion,
		u.nombre AS responsable,
		t.nombre AS tecnico_asignado,
		mt.fecha::text AS fecha
	FROM movimientos_tecnicos mt
	JOIN repuestos r ON mt.id_repuesto = r.id_repuesto
	JOIN localizacion l ON mt.id_localizacion = l.id_localizacion
	JOIN usuarios u ON mt.id_usuario_responsable = u.id_usuario
	JOIN usuarios t ON mt.id_tecnico_asignado = t.id_usuario
	WHERE ($1 = '' OR r.referencia = $1)
	ORDER BY mt.fecha DESC
	LIMIT 150`

func queryMovimientosTecnicos(ctx context.Context, pool *pgxpool.Pool, params map[string]string) ([]Section, error) {
	rows, err := runQuery(ctx, pool, "movimientos_tecnicos", sqlMovimientosTecnicos, params["referencia"])
	if err != nil {
		return nil, err
	}
	return []Section{{Source: "movimientos_tecnicos", Rows: rows}}, nil
}

const sqlSolicitudes = `
	SELECT
		s.id_solicitud::text,
		s.estado,
		lo.nombre AS origen,
		ld.nombre AS destino,
		us.nombre AS solicitante,
		ua.nombre AS alistador,
		ur.nombre AS receptor,
		s.fecha_creacion::text AS fecha_creacion,
		s.fecha_alistamiento::text AS fecha_alistamiento,
		s.fecha_despacho::text AS fecha_despacho,
		s.fecha_recepcion::text AS fecha_recepcion,
		s.guia_transporte,
		s.observaciones_generales
	FROM solicitudes s
	JOIN localizacion lo ON s.id_localizacion_origen = lo.id_localizacion
	JOIN localizacion ld ON s.id_localizacion_destino = ld.id_localizacion
	JOIN usuarios us ON s.id_usuario_solicitante = us.id_usuario
	LEFT JOIN usuarios ua ON s.id_usuario_alistador = ua.id_usuario
	LEFT JOIN usuarios ur ON s.id_usuario_receptor = ur.id_usuario
	ORDER BY s.fecha_creacion DESC
	LIMIT 100`

func querySolicitudes(ctx context.Context, pool *pgxpool.Pool, _ map[string]string) ([]Section, error) {
	rows, err := runQuery(ctx, pool, "solicitudes", sqlSolicitudes)
	if err != nil {
		return nil, err
	}
	return []Section{{Source: "solicitudes", Rows: rows}}, nil
}

const sqlConteos = `
	SELECT
		rc.id_conteo::text,
		rc.tipo,
		l.nombre AS localizacion,
		u.nombre AS usuario,
		rc.total_items_auditados,
		rc.total_diferencia_encontrada,
		rc.total_items_pq,
		rc.observaciones,
		rc.created_at::text AS fecha
	FROM registro_conteo rc
	JOIN localizacion l ON rc.id_localizacion = l.id_localizacion
	JOIN usuarios u ON rc.id_usuario = u.id_usuario
	ORDER BY rc.created_at DESC
	LIMIT 50`

const sqlDetallesConteo = `
	SELECT
		dc.id_conteo::text,
		r.referencia,
		r.nombre AS nombre_repuesto,
		dc.cantidad_sistema,
		dc.cantidad_csa,
		dc.diferencia,
		dc.cantidad_pq
	FROM detalles_conteo dc
	JOIN repuestos r ON dc.id_repuesto = r.id_repuesto
	WHERE dc.diferencia != 0 AND ($1 = '' OR r.referencia = $1)
	ORDER BY ABS(dc.diferencia) DESC
	LIMIT 100`

// queryConteos returns the audit headers plus the per-part differences
// as two separate sections.
func queryConteos(ctx context.Context, pool *pgxpool.Pool, params map[string]string) ([]Section, error) {
	headers, err := runQuery(ctx, pool, "conteos", sqlConteos)
	if err != nil {
		return nil, err
	}
	details, err := runQuery(ctx, pool, "detalles_conteos", sqlDetallesConteo, params["referencia"])
	if err != nil {
		return nil, err
	}
	return []Section{
		{Source: "conteos", Rows: headers},
		{Source: "detalles_conteos", Rows: details},
	}, nil
}

const sqlRepuestos = `
	SELECT
		referencia,
		nombre,
		marca,
		tipo,
		descripcion,
		descontinuado,
		fecha_estimada::text AS fecha_estimada,
		created_at::text AS fecha_creacion
	FROM repuestos
	WHERE ($1 = '' OR referencia = $1)
	ORDER BY nombre
	LIMIT 300`

func queryRepuestos(ctx context.Context, pool *pgxpool.Pool, params map[string]string) ([]Section, error) {
	rows, err := runQuery(ctx, pool, "repuestos", sqlRepuestos, params["referencia"])
	if err != nil {
		return nil, err
	}
	return []Section{{Source: "repuestos", Rows: rows}}, nil
}

func runQuery(ctx context.Context, pool *pgxpool.Pool, source, sql string, args ...any) ([]map[string]any, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for %s: %w", source, err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", source, err)
	}
	defer rows.Close()

	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("collect %s rows: %w", source, err)
	}
	return out, nil
}

// collectRows materializes a result set as column-keyed maps so the
// composer can serialize sections without knowing each schema.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0, 32)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
